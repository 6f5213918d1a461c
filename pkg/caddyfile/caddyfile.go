// Package caddyfile renders the generated proxy configuration. The
// output is a disposable artifact: regenerated wholesale on every
// apply, never hand-edited.
package caddyfile

import (
	"fmt"
	"strings"

	"github.com/sitedock/sitedock/pkg/registry"
)

// PlaceholderAddress is bound when no site is served, so the proxy
// always has something to listen on without elevated rights.
const PlaceholderAddress = "localhost:3000"

// PlaceholderMessage is the fixed response of the placeholder stanza.
const PlaceholderMessage = "sitedock: no site is currently being served"

// Generate maps the served-site subset to configuration text. Pure and
// deterministic: identical inputs always produce byte-identical output.
// Sites are rendered in the order given (the registry's stable sort);
// the generator does not assume how many there are.
func Generate(sites []registry.Site, accessLogPath string) string {
	var b strings.Builder

	if len(sites) == 0 {
		b.WriteString(PlaceholderAddress + " {\n")
		b.WriteString("\ttls internal\n")
		fmt.Fprintf(&b, "\trespond %q 200\n", PlaceholderMessage)
		b.WriteString("}\n")
		return b.String()
	}

	for i, site := range sites {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(site.Address() + " {\n")
		b.WriteString("\ttls internal\n")
		fmt.Fprintf(&b, "\troot * %q\n", site.Folder)
		b.WriteString("\tfile_server\n")
		b.WriteString("\tlog {\n")
		fmt.Fprintf(&b, "\t\toutput file %q\n", accessLogPath)
		b.WriteString("\t\tformat json\n")
		b.WriteString("\t}\n")
		b.WriteString("}\n")
	}

	return b.String()
}
