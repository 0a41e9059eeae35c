package model

import (
	"encoding/xml"
	"strconv"
)

func itoa(i int) string {
	return strconv.Itoa(i)
}

type TocNCXHead struct {
	XMLName xml.Name         `xml:"head"`
	Meta    []TocNCXHeadMeta `xml:"meta"`
}

type TocNCXHeadMeta struct {
	XMLName xml.Name `xml:"meta"`
	Content string   `xml:"content,attr"`
	Name    string   `xml:"name,attr"`
}

func (h *TocNCXHead) Marshal() (string, error) {
	xmlBytes, err := xml.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(xmlBytes), nil
}

type NavPoint struct {
	Id        string          `xml:"id,attr"`
	PlayOrder int             `xml:"playOrder,attr"`
	Label     string          `xml:"navLabel>text"`
	Content   NavPointContent `xml:"content"`
}

type NavPointContent struct {
	Src string `xml:"src,attr"`
}

type NavMap struct {
	XMLName xml.Name    `xml:"navMap"`
	Points  []*NavPoint `xml:"navPoint"`
}

func (n *NavMap) Marshal() (string, error) {
	xmlBytes, err := xml.Marshal(n)
	if err != nil {
		return "", err
	}
	return string(xmlBytes), nil
}

// Append adds a top level point with the next play order.
func (n *NavMap) Append(id, label, src string) {
	n.Points = append(n.Points, &NavPoint{
		Id:        id,
		PlayOrder: len(n.Points) + 1,
		Label:     label,
		Content:   NavPointContent{Src: src},
	})
}

// NewTocNCXHead builds the head block NCX readers require.
func NewTocNCXHead(uid string, depth int) *TocNCXHead {
	return &TocNCXHead{
		Meta: []TocNCXHeadMeta{
			{Name: "dtb:uid", Content: uid},
			{Name: "dtb:depth", Content: itoa(depth)},
			{Name: "dtb:totalPageCount", Content: "0"},
			{Name: "dtb:maxPageNumber", Content: "0"},
		},
	}
}
