package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
)

const modulePath = "chanpulse"

// rule forbids packages under importer from importing anything under imported.
// Paths ending in "/" match a subtree; other paths match themselves and below.
// Paths without the module prefix name third-party modules.
type rule struct {
	importer string
	imported string
	// allow lists importer subtrees exempt from the rule.
	allow  []string
	reason string
}

var rules = []rule{
	{importer: "pkg/", imported: "internal/", reason: "public packages must not depend on internal code"},
	{importer: "pkg/", imported: "modules/", reason: "public packages must not depend on feature modules"},
	{importer: "modules/", imported: "internal/", reason: "modules reach storage and transport only through pkg interfaces"},
	{importer: "internal/blobstore", imported: "internal/driver/", reason: "storage must not depend on a platform driver"},
	{importer: "internal/driver/", imported: "modules/", reason: "drivers feed modules, never the reverse"},
	{
		importer: "",
		imported: "github.com/gotd/td",
		allow:    []string{"internal/driver/telegram", "cmd/"},
		reason:   "gotd types stay behind the telegram driver",
	},
	{
		importer: "",
		imported: "modernc.org/sqlite",
		allow:    []string{"internal/blobstore"},
		reason:   "the sqlite driver is owned by the blob store",
	},
}

type listedPackage struct {
	ImportPath   string
	ForTest      string
	Imports      []string
	TestImports  []string
	XTestImports []string
}

func main() {
	packages, err := listPackages()
	if err != nil {
		fmt.Fprintf(os.Stderr, "arch-check: %v\n", err)
		os.Exit(1)
	}

	violations := collectViolations(packages, rules)
	if len(violations) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "arch-check: passed")
		return
	}

	_, _ = fmt.Fprintf(os.Stdout, "arch-check: %d violation(s):\n", len(violations))
	for _, violation := range violations {
		_, _ = fmt.Fprintf(os.Stdout, "  - %s\n", violation)
	}
	os.Exit(1)
}

func listPackages() ([]listedPackage, error) {
	var stdout bytes.Buffer
	cmd := exec.Command("go", "list", "-json", "-test", "./...")
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}

	return decodePackages(&stdout)
}

func decodePackages(r io.Reader) ([]listedPackage, error) {
	decoder := json.NewDecoder(r)
	var packages []listedPackage
	for {
		var pkg listedPackage
		err := decoder.Decode(&pkg)
		if errors.Is(err, io.EOF) {
			return packages, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode package list: %w", err)
		}
		if pkg.ImportPath != "" && pkg.ForTest == "" && !strings.HasSuffix(pkg.ImportPath, ".test") {
			packages = append(packages, pkg)
		}
	}
}

func collectViolations(packages []listedPackage, rules []rule) []string {
	var violations []string
	for _, pkg := range packages {
		importer, own := relative(pkg.ImportPath)
		if !own {
			continue
		}

		imports := slices.Concat(pkg.Imports, pkg.TestImports, pkg.XTestImports)
		for _, imported := range imports {
			for _, current := range rules {
				if current.forbids(importer, imported) {
					violations = append(violations, fmt.Sprintf("%s -> %s: %s", pkg.ImportPath, imported, current.reason))
				}
			}
		}
	}

	slices.Sort(violations)
	return slices.Compact(violations)
}

func (r rule) forbids(importer, imported string) bool {
	if !within(importer, r.importer) {
		return false
	}
	for _, exempt := range r.allow {
		if within(importer, exempt) {
			return false
		}
	}

	if local, own := relative(imported); own {
		return !strings.Contains(r.imported, ".") && within(local, r.imported)
	}

	return within(imported, r.imported)
}

// relative strips the module prefix and reports whether path belongs to this module.
func relative(path string) (string, bool) {
	if path == modulePath {
		return "", true
	}
	local, found := strings.CutPrefix(path, modulePath+"/")
	return local, found
}

func within(path, scope string) bool {
	if scope == "" {
		return true
	}
	if strings.HasSuffix(scope, "/") {
		return strings.HasPrefix(path, scope)
	}

	return path == scope || strings.HasPrefix(path, scope+"/")
}
