// Package templates renders the slideshow html fragments swapped in by htmx
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/aouyang1/digitalgarden/api/models"
)

const swapTarget = "#slideshow"

// Slide renders the slideshow container for one view. While the image is loading the
// container polls the server until the render settles.
func Slide(resp models.SlideshowResponse) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}

		out.raw("<div id=\"slideshow\"")
		out.attr("class", stateClass(resp))
		if resp.Loading {
			out.attr("hx-get", "/slideshow")
			out.attr("hx-trigger", "load delay:250ms")
			out.attr("hx-swap", "outerHTML")
		}
		out.raw(">")

		if resp.State == "empty" {
			out.raw("<p class=\"empty\">No images to show</p></div>")
			return out.err
		}

		out.raw("<div class=\"backdrop\"")
		out.attr("style", backgroundStyle(resp))
		out.raw("></div>")

		out.raw("<div id=\"loader\" class=\"loader\"")
		out.attr("style", loaderStyle(resp))
		out.raw("></div>")

		out.raw("<img id=\"current-image\"")
		out.attr("class", imageClass(resp))
		if resp.ImagePath != "" {
			out.attr("src", resp.ImagePath)
		}
		out.attr("alt", resp.Name)
		out.raw(">")

		out.raw("<h2 id=\"image-title\">")
		if !resp.Loading {
			out.text(title(resp))
		}
		out.raw("</h2>")

		out.raw("<div class=\"controls\">")
		navButton(out, "prev-button", "/slideshow/previous", "&#8249;")
		out.raw("<span class=\"counter\">")
		out.text(counter(resp))
		out.raw("</span>")
		navButton(out, "next-button", "/slideshow/next", "&#8250;")
		out.raw("</div></div>")

		return out.err
	})
}

func navButton(out *writer, id, path, label string) {
	out.raw("<button")
	out.attr("id", id)
	out.attr("hx-post", path)
	out.attr("hx-target", swapTarget)
	out.attr("hx-swap", "outerHTML")
	out.raw(">" + label + "</button>")
}

// Unavailable renders the container when no slideshow has been built.
func Unavailable(message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		out.raw("<div id=\"slideshow\" class=\"slideshow state-unavailable\"><p class=\"empty\">")
		out.text(message)
		out.raw("</p></div>")
		return out.err
	})
}
