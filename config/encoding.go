package config

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// md5 files written by windows exporters carry cp1252 joint and shader names
var currentCharMap *charmap.Charmap = charmap.Windows1252

func findCharmap(name string) *charmap.Charmap {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if strings.EqualFold(cm.String(), name) {
				return cm
			}
		}
	}
	return nil
}

func SetEncoding(name string) error {
	gLock.Lock()
	defer gLock.Unlock()
	if cm := findCharmap(name); cm != nil {
		currentCharMap = cm
		return nil
	}
	return errors.Errorf("Failed to find encoding %q", name)
}

func ListEncodings() []string {
	list := make([]string, 0)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

func GetEncoding() *charmap.Charmap {
	gLock.Lock()
	defer gLock.Unlock()
	return currentCharMap
}
