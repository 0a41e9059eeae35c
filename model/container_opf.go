package model

import "encoding/xml"

const (
	NamespaceDC  = "http://purl.org/dc/elements/1.1/"
	NamespaceOPF = "http://www.idpf.org/2007/opf"
)

type DublinCoreMetadata struct {
	XMLName xml.Name `xml:"metadata"`
	XmlnsDC string   `xml:"xmlns:dc,attr"`

	Titles      []DCTitle      `xml:"dc:title"`
	Identifiers []DCIdentifier `xml:"dc:identifier"`
	Languages   []DCLanguage   `xml:"dc:language"`

	Creators     []DCCreator     `xml:"dc:creator"`
	Publishers   []DCPublisher   `xml:"dc:publisher"`
	Descriptions []DCDescription `xml:"dc:description"`
	Sources      []DCSource      `xml:"dc:source"`

	// EPUB3 <meta> extensions, also used for the Kindle writing-mode hint.
	Metas []DublinCoreMeta `xml:"meta"`
}

func (d *DublinCoreMetadata) Marshal() (string, error) {
	if d.XmlnsDC == "" {
		d.XmlnsDC = NamespaceDC
	}
	xmlBytes, err := xml.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(xmlBytes), nil
}

type DCTitle struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr,omitempty"`
}

type DCIdentifier struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr,omitempty"`
}

type DCLanguage struct {
	Value string `xml:",chardata"`
}

type DCCreator struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr,omitempty"`
}

type DCPublisher struct {
	Value string `xml:",chardata"`
}

type DCDescription struct {
	Value string `xml:",chardata"`
}

// DCSource is the URL of the work on the source site.
type DCSource struct {
	Value string `xml:",chardata"`
}

type DublinCoreMeta struct {
	Name     string `xml:"name,attr,omitempty"`
	Content  string `xml:"content,attr,omitempty"`
	Property string `xml:"property,attr,omitempty"`
	Refines  string `xml:"refines,attr,omitempty"`
	Value    string `xml:",chardata"`
}

type Manifest struct {
	XMLName xml.Name       `xml:"manifest"`
	Items   []ManifestItem `xml:"item"`
}

func (m *Manifest) Marshal() (string, error) {
	xmlBytes, err := xml.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(xmlBytes), nil
}

type ManifestItem struct {
	ID         string `xml:"id,attr"`
	Link       string `xml:"href,attr"`
	Media      string `xml:"media-type,attr,omitempty"`
	Properties string `xml:"properties,attr,omitempty"`
}

type Spine struct {
	XMLName xml.Name `xml:"spine"`
	Toc     string   `xml:"toc,attr,omitempty"`
	// PageProgressionDirection is "rtl" for vertical Japanese books.
	PageProgressionDirection string      `xml:"page-progression-direction,attr,omitempty"`
	Items                    []SpineItem `xml:"itemref"`
}

func (s *Spine) Marshal() (string, error) {
	xmlBytes, err := xml.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(xmlBytes), nil
}

type SpineItem struct {
	IDref  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr,omitempty"`
}

type Guide struct {
	XMLName xml.Name    `xml:"guide"`
	Items   []GuideItem `xml:"reference"`
}

func (g *Guide) Marshal() (string, error) {
	xmlBytes, err := xml.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(xmlBytes), nil
}

type GuideItem struct {
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
	Link  string `xml:"href,attr"`
}
