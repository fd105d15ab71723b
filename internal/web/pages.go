package web

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
)

// maxPageErrors limits the error table on the summary page; the CSV export
// has the full list.
const maxPageErrors = 200

// UploadLogPage renders an upload log as a standalone HTML page.
func UploadLogPage(log *ingest.UploadLog) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &pageWriter{w: w}

		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<title>Upload `)
		p.text(log.FileName)
		p.raw(`</title><style>body{font-family:system-ui,sans-serif;margin:2rem}` +
			`table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.25rem .5rem;text-align:left}` +
			`.ok{color:#166534}.bad{color:#991b1b}</style></head><body>`)

		p.raw(`<h1>`)
		p.text(log.FileName)
		p.raw(`</h1>`)

		status, class := "Completed with issues", "bad"
		if ok, _ := log.Summary["success"].(bool); ok {
			status, class = "Completed", "ok"
		}
		if failure, _ := log.Summary["failure"].(string); failure != "" {
			status = failure
		}
		p.raw(`<p class="` + class + `">`)
		p.text(status)
		p.raw(`</p>`)

		p.raw(`<table><tbody>`)
		p.row("Uploaded by", log.CreatedBy)
		p.row("Uploaded at", log.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		p.row("File size", fmt.Sprintf("%d bytes", log.FileSize))
		p.row("Total rows", strconv.Itoa(log.TotalRecords))
		p.row("Created", strconv.Itoa(log.SuccessfulRecords))
		p.row("Failed to save", strconv.Itoa(log.FailedRecords))
		p.row("Duplicates", strconv.Itoa(log.DuplicateRecords))
		if key, _ := log.Summary["archiveKey"].(string); key != "" {
			p.row("Archived as", key)
		}
		p.raw(`</tbody></table>`)

		if len(log.Errors) > 0 {
			p.raw(`<h2>Errors</h2><p><a href="/api/uploads/`)
			p.text(log.ID)
			p.raw(`/errors.csv">Download CSV</a></p>`)
			p.raw(`<table><thead><tr><th>Row</th><th>Field</th><th>Value</th><th>Message</th></tr></thead><tbody>`)
			for i, e := range log.Errors {
				if i == maxPageErrors {
					p.raw(`<tr><td colspan="4">`)
					p.text(fmt.Sprintf("%d more not shown", len(log.Errors)-maxPageErrors))
					p.raw(`</td></tr>`)
					break
				}
				p.raw(`<tr><td>`)
				p.text(strconv.Itoa(e.Row))
				p.raw(`</td><td>`)
				p.text(e.Field)
				p.raw(`</td><td>`)
				p.text(e.Value)
				p.raw(`</td><td>`)
				p.text(e.Message)
				p.raw(`</td></tr>`)
			}
			p.raw(`</tbody></table>`)
		}

		p.raw(`</body></html>`)
		return p.err
	})
}

// pageWriter writes HTML, keeping the first error.
type pageWriter struct {
	w   io.Writer
	err error
}

func (p *pageWriter) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *pageWriter) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *pageWriter) row(label, value string) {
	p.raw(`<tr><th>`)
	p.text(label)
	p.raw(`</th><td>`)
	p.text(value)
	p.raw(`</td></tr>`)
}
