package template

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"narou2epub/model"
)

// ContainerXML renders META-INF/container.xml pointing at opfPath.
func ContainerXML(opfPath string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
<rootfiles>
<rootfile full-path="%s" media-type="application/oebps-package+xml"/>
</rootfiles>
</container>
`, templ.EscapeString(opfPath))
		return err
	})
}

// ContentOPF renders the package document. guide may be nil.
func ContentOPF(uniqueIdentifier string, dc *model.DublinCoreMetadata, manifest *model.Manifest, spine *model.Spine, guide *model.Guide) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
		fmt.Fprintf(&b, `<package xmlns="%s" version="3.0" unique-identifier="%s" xml:lang="ja" prefix="rendition: http://www.idpf.org/vocab/rendition/#">`+"\n",
			model.NamespaceOPF, templ.EscapeString(uniqueIdentifier))

		parts := []interface{ Marshal() (string, error) }{dc, manifest, spine}
		if guide != nil {
			parts = append(parts, guide)
		}
		for _, part := range parts {
			s, err := part.Marshal()
			if err != nil {
				return fmt.Errorf("failed to marshal package document: %w", err)
			}
			b.WriteString(s)
			b.WriteString("\n")
		}
		b.WriteString("</package>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// TocNCX renders the EPUB 2 navigation control file.
func TocNCX(title string, head *model.TocNCXHead, navMap *model.NavMap) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		headXML, err := head.Marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal ncx head: %w", err)
		}
		navXML, err := navMap.Marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal ncx nav map: %w", err)
		}
		_, err = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1" xml:lang="ja">
%s
<docTitle><text>%s</text></docTitle>
%s
</ncx>
`, headXML, templ.EscapeString(title), navXML)
		return err
	})
}
