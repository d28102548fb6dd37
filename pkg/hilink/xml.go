package hilink

import (
	"fmt"
	"strings"

	"github.com/clbanning/mxj"
)

// Field returns the text of the first element named tag in body, or "" if the
// tag is absent or body is not well-formed XML.
func Field(body, tag string) string {
	values := Fields(body, tag)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Fields returns the text of every element named tag in body
func Fields(body, tag string) []string {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	m, err := mxj.NewMapXml([]byte(body))
	if err != nil {
		return nil
	}
	found, err := m.ValuesForKey(tag)
	if err != nil {
		return nil
	}

	var out []string
	for _, v := range found {
		out = append(out, textOf(v)...)
	}
	return out
}

// textOf flattens one mxj value to its character data.
// Repeated sibling elements decode to a slice.
func textOf(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{strings.TrimSpace(t)}
	case map[string]interface{}:
		if text, ok := t["#text"]; ok {
			return []string{strings.TrimSpace(fmt.Sprint(text))}
		}
		// element with attributes only, or nested children
		if onlyAttributes(t) {
			return []string{""}
		}
		return nil
	case []interface{}:
		var out []string
		for _, item := range t {
			out = append(out, textOf(item)...)
		}
		return out
	case nil:
		return []string{""}
	default:
		return []string{fmt.Sprint(t)}
	}
}

func onlyAttributes(m map[string]interface{}) bool {
	for k := range m {
		if !strings.HasPrefix(k, "-") {
			return false
		}
	}
	return true
}
