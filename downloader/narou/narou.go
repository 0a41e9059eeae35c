// Package narou fetches work listings, episodes and illustrations from
// syosetu.com ("小説家になろう").
package narou

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"narou2epub/logging"
	"narou2epub/model"
	"narou2epub/utils"
)

const (
	DefaultAPIURL  = "https://api.syosetu.com/novelapi/api/"
	DefaultBaseURL = "https://ncode.syosetu.com"
)

// PageGetter downloads an HTML page.
type PageGetter interface {
	Get(ctx context.Context, url string) (string, error)
}

// Options configures a Narou client.
type Options struct {
	APIURL    string
	BaseURL   string
	UserAgent string
	// Timeout applies to each individual request.
	Timeout time.Duration
	Retry   utils.RetryPolicy

	DownloadInterval time.Duration
	WaitSteps        int
	StepsWait        time.Duration
	APIInterval      time.Duration

	// Pages overrides the HTTP page getter, e.g. with a ChromeGetter.
	Pages  PageGetter
	Logger *logrus.Logger
}

// Narou implements model.Source for syosetu.com. It holds no state besides
// pacing bookkeeping and never touches the cache.
type Narou struct {
	apiURL   string
	baseURL  string
	client   *resty.Client
	pages    PageGetter
	retry    utils.RetryPolicy
	pacer    *Pacer
	apiPacer *Pacer
	logger   *logrus.Entry
	now      func() time.Time
}

var _ model.Source = (*Narou)(nil)

// New creates a client.
func New(opts Options) *Narou {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := utils.NewRestyClient(opts.UserAgent, opts.Timeout)

	n := &Narou{
		apiURL:   opts.APIURL,
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		client:   client,
		pages:    opts.Pages,
		retry:    opts.Retry,
		pacer:    NewPacer(opts.DownloadInterval, opts.WaitSteps, opts.StepsWait),
		apiPacer: NewPacer(opts.APIInterval, 0, 0),
		logger:   logging.Component(opts.Logger, "narou"),
		now:      time.Now,
	}
	if n.pages == nil {
		n.pages = &httpGetter{client: client}
	}
	return n
}

// WorkURL is the table of contents URL of a work.
func (n *Narou) WorkURL(id model.WorkID) string {
	return fmt.Sprintf("%s/%s/", n.baseURL, id)
}

type apiWork struct {
	Title        string `json:"title"`
	NCode        string `json:"ncode"`
	Writer       string `json:"writer"`
	GeneralAllNo int    `json:"general_all_no"`
	NovelType    int    `json:"noveltype"`
}

// ListChapters fetches the work metadata from the novel API and walks every
// table of contents page.
func (n *Narou) ListChapters(ctx context.Context, id model.WorkID) (*model.Listing, error) {
	work, err := n.fetchMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	listing := &model.Listing{Work: *work, URL: n.WorkURL(id)}
	section := ""
	for page := 1; ; page++ {
		url := n.WorkURL(id)
		if page > 1 {
			url += fmt.Sprintf("?p=%d", page)
		}
		n.logger.WithFields(logrus.Fields{"work": id, "page": page}).Info("Getting table of contents")

		doc, err := n.getDocument(ctx, url, n.pacer)
		if err != nil {
			var status *utils.HTTPStatusError
			// Later pages vanishing is a site problem, the work itself exists.
			if page == 1 && errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
				return nil, &model.WorkNotFoundError{WorkID: id}
			}
			return nil, &model.SourceUnavailableError{WorkID: id, Cause: err}
		}

		toc := parseTOC(doc, section)
		if !toc.Found {
			if page == 1 {
				// Short story: the work page is the only episode.
				listing.Chapters = append(listing.Chapters, model.ChapterRef{
					Index: 1,
					Title: work.Title,
					URL:   n.WorkURL(id),
				})
			}
			break
		}
		listing.Sections = appendUnique(listing.Sections, toc.Sections...)
		if len(toc.Sections) > 0 {
			section = toc.Sections[len(toc.Sections)-1]
		}
		for _, entry := range toc.Entries {
			index := len(listing.Chapters) + 1
			if entry.Number != 0 && entry.Number != index {
				return nil, &model.SourceUnavailableError{
					WorkID: id,
					Cause:  fmt.Errorf("listing is not contiguous: expected episode %d, found %d (%s)", index, entry.Number, entry.URL),
				}
			}
			ref := entry.ChapterRef
			ref.Index = index
			ref.URL = n.resolve(entry.URL)
			listing.Chapters = append(listing.Chapters, ref)
		}
		if !toc.HasNext {
			break
		}
	}

	listing.FetchedAt = n.now().UTC().Truncate(time.Second)
	if listing.Work.Total == 0 {
		listing.Work.Total = len(listing.Chapters)
	}
	return listing, nil
}

func (n *Narou) fetchMetadata(ctx context.Context, id model.WorkID) (*model.Work, error) {
	n.logger.WithField("work", id).Info("Getting work metadata")

	body, err := utils.Retry(ctx, n.retry, func(ctx context.Context, attempt int) ([]byte, error) {
		if err := n.apiPacer.Wait(ctx); err != nil {
			return nil, utils.Permanent(err)
		}
		resp, err := n.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"out":   "json",
				"ncode": string(id),
				"lim":   "1",
			}).
			Get(n.apiURL)
		if err != nil {
			return nil, err
		}
		if err := utils.CheckResponse(resp); err != nil {
			return nil, classify(err)
		}
		return resp.Body(), nil
	})
	if err != nil {
		return nil, &model.SourceUnavailableError{WorkID: id, Cause: err}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &model.SourceUnavailableError{WorkID: id, Cause: fmt.Errorf("decode api response: %w", err)}
	}
	// The first element only carries {"allcount": N}.
	if len(raw) < 2 {
		return nil, &model.WorkNotFoundError{WorkID: id}
	}
	var w apiWork
	if err := json.Unmarshal(raw[1], &w); err != nil {
		return nil, &model.SourceUnavailableError{WorkID: id, Cause: fmt.Errorf("decode api work: %w", err)}
	}
	return &model.Work{
		ID:     id,
		Title:  strings.TrimSpace(w.Title),
		Writer: strings.TrimSpace(w.Writer),
		Total:  w.GeneralAllNo,
	}, nil
}

// FetchChapter downloads one episode. Exhausted retries surface as
// *model.ChapterFetchError.
func (n *Narou) FetchChapter(ctx context.Context, id model.WorkID, ref model.ChapterRef) (*model.Chapter, error) {
	url := ref.URL
	if url == "" {
		url = fmt.Sprintf("%s/%s/%d/", n.baseURL, id, ref.Index)
	}
	n.logger.WithFields(logrus.Fields{"work": id, "chapter": ref.Index}).Debug("Getting chapter")

	doc, err := n.getDocument(ctx, url, n.pacer)
	if err != nil {
		return nil, &model.ChapterFetchError{Index: ref.Index, Cause: err}
	}
	title, body, images, err := parseEpisode(doc)
	if err != nil {
		return nil, &model.ChapterFetchError{Index: ref.Index, Cause: err}
	}
	if strings.TrimSpace(ref.Title) != "" {
		title = ref.Title
	}

	return &model.Chapter{
		WorkID:  id,
		Index:   ref.Index,
		Title:   title,
		Section: ref.Section,
		Body:    body,
		Images:  images,
	}, nil
}

// FetchImage downloads an illustration.
func (n *Narou) FetchImage(ctx context.Context, url string) ([]byte, error) {
	n.logger.WithField("url", url).Debug("Getting image")
	return utils.Retry(ctx, n.retry, func(ctx context.Context, attempt int) ([]byte, error) {
		if err := n.pacer.Wait(ctx); err != nil {
			return nil, utils.Permanent(err)
		}
		resp, err := n.client.R().
			SetContext(ctx).
			SetHeader("Referer", n.baseURL+"/").
			Get(url)
		if err != nil {
			return nil, err
		}
		if err := utils.CheckResponse(resp); err != nil {
			return nil, classify(err)
		}
		return resp.Body(), nil
	})
}

func (n *Narou) getDocument(ctx context.Context, url string, pacer *Pacer) (*goquery.Document, error) {
	return utils.Retry(ctx, n.retry, func(ctx context.Context, attempt int) (*goquery.Document, error) {
		if err := pacer.Wait(ctx); err != nil {
			return nil, utils.Permanent(err)
		}
		if attempt > 1 {
			n.logger.WithFields(logrus.Fields{"url": url, "attempt": attempt}).Warn("Retrying request")
		}
		html, err := n.pages.Get(ctx, url)
		if err != nil {
			return nil, classify(err)
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("failed to parse html: %w", err)
		}
		return doc, nil
	})
}

func (n *Narou) resolve(href string) string {
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return n.baseURL + href
	default:
		return n.baseURL + "/" + href
	}
}

// classify marks client errors other than 429 as permanent.
func classify(err error) error {
	var status *utils.HTTPStatusError
	if errors.As(err, &status) && !status.Temporary() {
		return utils.Permanent(err)
	}
	return err
}

type httpGetter struct {
	client *resty.Client
}

func (g *httpGetter) Get(ctx context.Context, url string) (string, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetCookie(&http.Cookie{Name: "over18", Value: "yes"}).
		Get(url)
	if err != nil {
		return "", err
	}
	if err := utils.CheckResponse(resp); err != nil {
		return "", err
	}
	return string(bytes.ToValidUTF8(resp.Body(), []byte("�"))), nil
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}
