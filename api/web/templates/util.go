package templates

import (
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/aouyang1/digitalgarden/api/models"
)

func stateClass(resp models.SlideshowResponse) string {
	return "slideshow state-" + resp.State
}

func loaderStyle(resp models.SlideshowResponse) string {
	if resp.Loading {
		return "display: block;"
	}
	return "display: none;"
}

func imageClass(resp models.SlideshowResponse) string {
	if resp.Visible {
		return "show"
	}
	return ""
}

func backgroundStyle(resp models.SlideshowResponse) string {
	if resp.BackgroundPath == "" {
		return ""
	}
	return fmt.Sprintf("background-image: url('%s');", resp.BackgroundPath)
}

func counter(resp models.SlideshowResponse) string {
	return fmt.Sprintf("%d / %d", resp.Position+1, resp.Total)
}

func title(resp models.SlideshowResponse) string {
	if resp.Placeholder {
		return resp.Name + " (unavailable)"
	}
	return resp.Name
}

// writer collects the first write error so components can emit markup linearly.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) attr(name, value string) {
	w.raw(" " + name + "=\"" + templ.EscapeString(value) + "\"")
}
