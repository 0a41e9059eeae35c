package proofread

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"

	"narou2epub/model"
)

func TestRules(t *testing.T) {
	tests := []struct {
		name string
		rule func(string) string
		in   string
		want string
	}{
		{"sesame", Sesame, "《《強調》》した", `<em class="sesame">強調</em>した`},
		{"sesame nested", Sesame, "《《《《a》》》》", `《《<em class="sesame">a</em>》》`},
		{"explicit ruby", ExplicitRuby, "｜魔法少女《まほうしょうじょ》", "<ruby>魔法少女<rp>（</rp><rt>まほうしょうじょ</rt><rp>）</rp></ruby>"},
		{"explicit ruby half-width bar", ExplicitRuby, "|AI《エーアイ》", "<ruby>AI<rp>（</rp><rt>エーアイ</rt><rp>）</rp></ruby>"},
		{"explicit ruby nearest bar", ExplicitRuby, "｜a｜b《c》", "｜a<ruby>b<rp>（</rp><rt>c</rt><rp>）</rp></ruby>"},
		{"auto ruby", AutoRuby, "これは漢字《かんじ》です", "これは<ruby>漢字<rp>（</rp><rt>かんじ</rt><rp>）</rp></ruby>です"},
		{"auto ruby iteration mark", AutoRuby, "人々《ひとびと》", "<ruby>人々<rp>（</rp><rt>ひとびと</rt><rp>）</rp></ruby>"},
		{"auto ruby needs kanji", AutoRuby, "ひらがな《よみ》", "ひらがな《よみ》"},
		{"pair exclamation question", PairedPunctuation, "本当!?", "本当⁉"},
		{"pair full-width", PairedPunctuation, "えっ？？", "えっ⁇"},
		{"pair odd run", PairedPunctuation, "!!!", "‼!"},
		{"pair question exclamation", PairedPunctuation, "何？！", "何⁈"},
		{"letters short", LatinLetters, "AIが", "ＡＩが"},
		{"letters inside tags only text", LatinLetters, `<p id="x">OK</p>`, `<p id="x">ＯＫ</p>`},
		{"letters phrase", LatinLetters, "「Hello world」", "「Hello world」"},
		{"letters long word", LatinLetters, "Programming", "Programming"},
		{"letters keep entity", LatinLetters, "x&amp;y", "ｘ&amp;ｙ"},
		{"letters phrase with entity", LatinLetters, "Tom &amp; Jerry", "Tom &amp; Jerry"},
		{"digit single", VerticalDigits, "1人", "１人"},
		{"digit pair", VerticalDigits, "12歳", `<span class="tcy">12</span>歳`},
		{"digit long", VerticalDigits, "2024年", "２０２４年"},
		{"digit mixed", VerticalDigits, "第3話と第10話", `第３話と第<span class="tcy">10</span>話`},
		{"digit full-width", VerticalDigits, "１２", "１２"},
		{"digit tcy untouched", VerticalDigits, `<span class="tcy">12</span>`, `<span class="tcy">12</span>`},
		{"digit entity untouched", VerticalDigits, "&#34;引用&#34;", "&#34;引用&#34;"},
		{"digit english phrase", VerticalDigits, "Windows 10 update", "Windows 10 update"},
		{"digit attribute untouched", VerticalDigits, `<img src="a/12.jpg"/>`, `<img src="a/12.jpg"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule(tt.in))
		})
	}
}

var idempotenceCorpus = []string{
	"",
	"普通の文章です。",
	"《《《《a》》》》",
	"｜a｜b《c》",
	"漢《《x》",
	"漢《か》》",
	"!!!??!?",
	"Windows 10 update",
	"&#65;12&#66;",
	"A 1",
	"1.5",
	"x&amp;y 3",
	"abc123def",
	"ab12",
	"12345",
	"１2",
	`<p id="a">Hi 2 u</p>`,
	`<p>彼は｜AI《エーアイ》と12回話した!?</p><p>《《3》》人目の魔王《まおう》</p>`,
	`<span class="tcy">12</span>3`,
	"<ruby>漢<rt>12</rt></ruby>",
}

func TestRulesIdempotent(t *testing.T) {
	for _, rule := range DefaultRules() {
		for _, in := range idempotenceCorpus {
			once := rule.Apply(in)
			assert.Equal(t, once, rule.Apply(once), "rule %s on %q", rule.Name, in)
		}
	}
}

func TestTransformIdempotent(t *testing.T) {
	p := New()
	for _, in := range idempotenceCorpus {
		once := p.Transform(in)
		assert.Equal(t, once, p.Transform(once), "input %q", in)
	}
}

// markup is random chapter markup built from whole tags, entities, ruby and
// emphasis delimiters, digits, letters and punctuation.
type markup string

var markupTokens = []string{
	"<p>", "</p>", "<br/>", `<span class="tcy">`, "</span>", "<ruby>", "<rt>", "</rt>", "</ruby>",
	"&amp;", "&#12;", "&quot;",
	"｜", "|", "《", "》", "《《", "》》",
	"漢", "字", "々", "か", "な", "。", "「", "」",
	"!", "！", "?", "？",
	"0", "1", "2", "9", "１", "２",
	"a", "B", "z", "Hello", "world", " ", ".", ",", "-", "'",
}

func (markup) Generate(r *rand.Rand, size int) reflect.Value {
	var b strings.Builder
	for n := r.Intn(size + 1); n > 0; n-- {
		b.WriteString(markupTokens[r.Intn(len(markupTokens))])
	}
	return reflect.ValueOf(markup(b.String()))
}

func TestTransformIdempotentProperty(t *testing.T) {
	p := New()
	cfg := &quick.Config{MaxCount: 5000, Rand: rand.New(rand.NewSource(1))}
	err := quick.Check(func(in markup) bool {
		once := p.Transform(string(in))
		return p.Transform(once) == once
	}, cfg)
	assert.NoError(t, err)
}

func TestRulesIdempotentProperty(t *testing.T) {
	for _, rule := range DefaultRules() {
		cfg := &quick.Config{MaxCount: 2000, Rand: rand.New(rand.NewSource(2))}
		err := quick.Check(func(in markup) bool {
			once := rule.Apply(string(in))
			return rule.Apply(once) == once
		}, cfg)
		assert.NoError(t, err, "rule %s", rule.Name)
	}
}

func TestTransform(t *testing.T) {
	p := New()
	got := p.Transform("彼は｜AI《エーアイ》と12回話した!?")
	assert.Equal(t, `彼は<ruby>ＡＩ<rp>（</rp><rt>エーアイ</rt><rp>）</rp></ruby>と<span class="tcy">12</span>回話した⁉`, got)
}

func TestTransformPassesThroughPlainText(t *testing.T) {
	p := New()
	in := "<p>今日はいい天気だ。</p>"
	assert.Equal(t, in, p.Transform(in))
}

func TestCustomRules(t *testing.T) {
	p := New(Rule{Name: "digits", Apply: VerticalDigits})
	assert.Equal(t, []string{"digits"}, p.Rules())
	assert.Equal(t, "AI１", p.Transform("AI1"))
}

func TestChapterDoesNotMutate(t *testing.T) {
	raw := model.Chapter{Index: 1, Title: "第1話", Body: "<p>1人</p>", Images: []model.ImageRef{{Src: "a", URL: "https://a"}}}

	out := New().Chapter(raw)

	assert.Equal(t, "<p>１人</p>", out.Body)
	assert.Equal(t, "第1話", out.Title)
	assert.Equal(t, "<p>1人</p>", raw.Body)
	assert.Equal(t, raw.Images, out.Images)
}
