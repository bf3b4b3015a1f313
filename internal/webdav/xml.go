package webdav

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
)

// ExportName is the virtual entry listed in every non-empty folder; a GET on
// it downloads that folder's snapshot.
const ExportName = "folder.mix_dav"

type multistatus struct {
	XMLName   xml.Name   `xml:"D:multistatus"`
	Namespace string     `xml:"xmlns:D,attr"`
	Responses []response `xml:"D:response"`
}

type response struct {
	Href     string   `xml:"D:href"`
	Propstat propstat `xml:"D:propstat"`
}

type propstat struct {
	Prop   prop   `xml:"D:prop"`
	Status string `xml:"D:status"`
}

type prop struct {
	DisplayName   string       `xml:"D:displayname"`
	ResourceType  resourceType `xml:"D:resourcetype"`
	ContentType   string       `xml:"D:getcontenttype,omitempty"`
	ContentLength *int64       `xml:"D:getcontentlength,omitempty"`
	ETag          string       `xml:"D:getetag,omitempty"`
	LastModified  string       `xml:"D:getlastmodified"`
}

type resourceType struct {
	Collection *struct{} `xml:"D:collection,omitempty"`
}

// RenderMultistatus renders a PROPFIND answer for self at p followed by its
// children. prefix is the URL path the tree is mounted on.
func RenderMultistatus(prefix, p string, self *Node, children []*Node) ([]byte, error) {
	ms := multistatus{Namespace: "DAV:"}
	ms.Responses = append(ms.Responses, newResponse(href(prefix, p, self.IsFolder), self))
	for _, c := range children {
		ms.Responses = append(ms.Responses, newResponse(href(prefix, JoinPath(p, c.Name), c.IsFolder), c))
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(ms); err != nil {
		return nil, fmt.Errorf("render multistatus: %w", err)
	}
	return buf.Bytes(), nil
}

func newResponse(href string, n *Node) response {
	pr := prop{
		DisplayName:  n.Name,
		LastModified: n.HTTPTime(),
	}
	if n.IsFolder {
		pr.ResourceType.Collection = &struct{}{}
	} else {
		size := n.Size
		pr.ContentType = n.ContentType()
		pr.ContentLength = &size
		pr.ETag = n.ETag()
	}
	return response{
		Href:     href,
		Propstat: propstat{Prop: pr, Status: "HTTP/1.1 200 OK"},
	}
}

func href(prefix, p string, folder bool) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(prefix, "/"))
	for _, segment := range strings.Split(NormalizePath(p), "/") {
		if segment == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(segment))
	}
	if folder || b.Len() == 0 {
		b.WriteByte('/')
	}
	return b.String()
}
