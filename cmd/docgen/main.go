// Command docgen regenerates docs/api.adoc from the @Title/@Route comment
// annotations on the HTTP handlers. Run it after adding or changing an
// endpoint.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

type Endpoint struct {
	Title       string
	Route       string
	Description string
	Response    string
}

var (
	reTitle = regexp.MustCompile(`// @Title: (.*)`)
	reRoute = regexp.MustCompile(`// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`// @Description: (.*)`)
	reResp  = regexp.MustCompile(`// @Response: (.*)`)
)

func main() {
	var endpoints []Endpoint
	for _, dir := range []string{"internal/api", "internal/web"} {
		eps, err := scanDir(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
			os.Exit(1)
		}
		endpoints = append(endpoints, eps...)
	}

	if err := generateAsciidoc(endpoints); err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}
}

func scanDir(dir string) ([]Endpoint, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var endpoints []Endpoint
	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".go") || strings.HasSuffix(file.Name(), "_test.go") {
			continue
		}

		f, err := os.Open(filepath.Join(dir, file.Name()))
		if err != nil {
			continue
		}

		scanner := bufio.NewScanner(f)
		var current Endpoint
		for scanner.Scan() {
			line := scanner.Text()

			if match := reTitle.FindStringSubmatch(line); len(match) > 1 {
				current.Title = strings.TrimSpace(match[1])
			}
			if match := reRoute.FindStringSubmatch(line); len(match) > 1 {
				current.Route = strings.TrimSpace(match[1])
			}
			if match := reDesc.FindStringSubmatch(line); len(match) > 1 {
				current.Description = strings.TrimSpace(match[1])
			}
			if match := reResp.FindStringSubmatch(line); len(match) > 1 {
				current.Response = strings.TrimSpace(match[1])
				// End of block, append and reset
				if current.Title != "" && current.Route != "" {
					endpoints = append(endpoints, current)
					current = Endpoint{}
				}
			}
		}
		f.Close()
	}
	return endpoints, nil
}

func generateAsciidoc(endpoints []Endpoint) error {
	var b strings.Builder
	b.WriteString("= API Reference\n")
	b.WriteString(":toc:\n\n")
	b.WriteString("Generated from handler annotations; do not edit by hand.\n\n")

	for _, ep := range endpoints {
		fmt.Fprintf(&b, "== %s\n\n", ep.Title)
		fmt.Fprintf(&b, "`%s`\n\n", ep.Route)
		if ep.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", ep.Description)
		}
		if ep.Response != "" {
			fmt.Fprintf(&b, "Response: `%s`\n\n", ep.Response)
		}
	}

	if err := os.WriteFile(filepath.Join("docs", "api.adoc"), []byte(b.String()), 0o644); err != nil {
		return err
	}
	fmt.Printf("Generated docs/api.adoc with %d endpoints\n", len(endpoints))
	return nil
}
