package ingest

import (
	"bytes"
	"encoding/xml"
	"strings"

	"golang.org/x/net/html/charset"
)

// xmlNode is a generic element tree used for KML and GPX extensions.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

func parseXMLTree(data []byte) (*xmlNode, error) {
	var root xmlNode
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	return &root, nil
}

func (n *xmlNode) name() string { return n.XMLName.Local }

func (n *xmlNode) text() string { return strings.TrimSpace(n.Content) }

func (n *xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// child returns the first direct child named local.
func (n *xmlNode) child(local string) *xmlNode {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			return &n.Nodes[i]
		}
	}
	return nil
}

// children returns all direct children named local.
func (n *xmlNode) children(local string) []*xmlNode {
	var out []*xmlNode
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			out = append(out, &n.Nodes[i])
		}
	}
	return out
}

// childText returns the trimmed text of the first child named local.
func (n *xmlNode) childText(local string) string {
	if c := n.child(local); c != nil {
		return c.text()
	}
	return ""
}

// walk visits n and its descendants depth-first in document order.
// Returning false from fn skips the subtree of that node.
func (n *xmlNode) walk(fn func(*xmlNode) bool) {
	if !fn(n) {
		return
	}
	for i := range n.Nodes {
		n.Nodes[i].walk(fn)
	}
}

// isLeaf reports whether n has no element children.
func (n *xmlNode) isLeaf() bool { return len(n.Nodes) == 0 }
