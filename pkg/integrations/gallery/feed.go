package gallery

import (
	"encoding/xml"
	"io"
	"strings"
	"time"
)

// Decoding matches local element names, which keeps the Atom, OData data
// and metadata namespaces out of the struct tags.
type feed struct {
	Entries []feedEntry `xml:"entry"`
	Links   []feedLink  `xml:"link"`
}

type feedLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type feedEntry struct {
	Title      string         `xml:"title"`
	Content    feedContent    `xml:"content"`
	Properties feedProperties `xml:"properties"`
}

type feedContent struct {
	Src string `xml:"src,attr"`
}

type feedProperties struct {
	ID           string `xml:"Id"`
	Version      string `xml:"Version"`
	IsLatest     string `xml:"IsLatestVersion"`
	IsPrerelease string `xml:"IsPrerelease"`
	Published    string `xml:"Published"`
}

func (f *feed) nextLink() string {
	for _, l := range f.Links {
		if l.Rel == "next" {
			return l.Href
		}
	}
	return ""
}

func (e feedEntry) version() (Version, bool) {
	p := e.Properties
	id := strings.TrimSpace(p.ID)
	if id == "" {
		id = strings.TrimSpace(e.Title)
	}
	v := strings.TrimSpace(p.Version)
	if id == "" || v == "" {
		return Version{}, false
	}
	return Version{
		ID:           id,
		Version:      v,
		IsLatest:     parseBool(p.IsLatest),
		IsPrerelease: parseBool(p.IsPrerelease),
		Published:    strings.TrimSpace(p.Published),
		DownloadURL:  strings.TrimSpace(e.Content.Src),
	}, true
}

func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

const (
	nsAtom     = "http://www.w3.org/2005/Atom"
	nsData     = "http://schemas.microsoft.com/ado/2007/08/dataservices"
	nsMetadata = "http://schemas.microsoft.com/ado/2007/08/dataservices/metadata"
)

type outFeed struct {
	XMLName xml.Name   `xml:"feed"`
	Xmlns   string     `xml:"xmlns,attr"`
	XmlnsD  string     `xml:"xmlns:d,attr"`
	XmlnsM  string     `xml:"xmlns:m,attr"`
	Title   string     `xml:"title"`
	ID      string     `xml:"id"`
	Updated string     `xml:"updated"`
	Entries []outEntry `xml:"entry"`
}

type outEntry struct {
	ID         string        `xml:"id"`
	Title      string        `xml:"title"`
	Updated    string        `xml:"updated"`
	Content    outContent    `xml:"content"`
	Properties outProperties `xml:"m:properties"`
}

type outContent struct {
	Type string `xml:"type,attr"`
	Src  string `xml:"src,attr"`
}

type outProperties struct {
	ID           string `xml:"d:Id"`
	Version      string `xml:"d:Version"`
	IsLatest     bool   `xml:"d:IsLatestVersion"`
	IsPrerelease bool   `xml:"d:IsPrerelease"`
	Published    string `xml:"d:Published,omitempty"`
}

// WriteFeed renders versions as a FindPackagesById() Atom feed. Download
// links point at {base}/package/{Name}/{Version}.
func WriteFeed(w io.Writer, base string, versions []Version) error {
	base = strings.TrimRight(base, "/")
	now := time.Now().UTC().Format(time.RFC3339)
	f := outFeed{
		Xmlns:   nsAtom,
		XmlnsD:  nsData,
		XmlnsM:  nsMetadata,
		Title:   "FindPackagesById",
		ID:      base + "/FindPackagesById",
		Updated: now,
	}
	for _, v := range versions {
		src := v.DownloadURL
		if src == "" {
			src = base + "/package/" + v.ID + "/" + v.Version
		}
		f.Entries = append(f.Entries, outEntry{
			ID:      base + "/Packages(Id='" + v.ID + "',Version='" + v.Version + "')",
			Title:   v.ID,
			Updated: now,
			Content: outContent{Type: "application/zip", Src: src},
			Properties: outProperties{
				ID:           v.ID,
				Version:      v.Version,
				IsLatest:     v.IsLatest,
				IsPrerelease: v.IsPrerelease,
				Published:    v.Published,
			},
		})
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Flush()
}
