package export

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatHTML = "html"
)

// writeOutputs writes the finished job in each requested format and returns
// the written paths. An empty dir writes nothing.
func writeOutputs(dir string, formats []string, job *Job) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	if len(formats) == 0 {
		formats = []string{FormatJSON}
	}

	var paths []string
	for _, format := range formats {
		var (
			data []byte
			err  error
		)
		switch format {
		case FormatJSON:
			data, err = json.MarshalIndent(job, "", "  ")
		case FormatHTML:
			data, err = renderDigest(job)
		default:
			return paths, fmt.Errorf("unknown export format %q", format)
		}
		if err != nil {
			return paths, fmt.Errorf("render %s: %w", format, err)
		}

		path := filepath.Join(dir, job.ID+"."+format)
		if err := os.WriteFile(path, data, 0600); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// digestPolicy strips anything executable from post text rendered into the digest.
var digestPolicy = bluemonday.UGCPolicy()

// renderDigest renders a Markdown summary of the job to sanitized HTML.
func renderDigest(job *Job) ([]byte, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# Bookmark export %s\n\n", job.ID)
	fmt.Fprintf(&md, "%d folders, %d posts.\n\n", len(job.Results), job.TweetCount())

	results := slices.Clone(job.Results)
	slices.SortStableFunc(results, func(a, b FolderResult) int {
		return cmp.Compare(a.FolderName, b.FolderName)
	})

	for _, r := range results {
		fmt.Fprintf(&md, "## %s\n\n", r.FolderName)
		if !r.Success {
			fmt.Fprintf(&md, "Export failed after %d pages: %s\n\n", r.Pages, r.Error)
		}
		for _, t := range r.Tweets {
			fmt.Fprintf(&md, "- [@%s](%s): %s", t.UserScreenName, t.TweetURL, oneLine(t.Text()))
			if t.MediaCount > 0 {
				fmt.Fprintf(&md, " (%d media)", t.MediaCount)
			}
			md.WriteString("\n")
		}
		md.WriteString("\n")
	}

	var body bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &body); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Bookmark export</title></head><body>\n")
	out.Write(digestPolicy.SanitizeBytes(body.Bytes()))
	out.WriteString("</body></html>\n")
	return out.Bytes(), nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
