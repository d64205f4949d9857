// Package view renders the HTML pages from templates embedded in the binary.
//
// Every page is parsed together with layout.html, which defines the
// "layout" and "post" templates; the page file itself defines "content".
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/sakif/ecosphere/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names accepted by Render.
const (
	PageHome             = "home"
	PageLoginRegister    = "login_register"
	PageRegisterUsername = "register_username"
	PageProfile          = "profile"
	PageSearch           = "search"
	PageError            = "error"
)

var pageNames = []string{
	PageHome,
	PageLoginRegister,
	PageRegisterUsername,
	PageProfile,
	PageSearch,
	PageError,
}

// Page is the data every template receives. The first block is filled on
// every request by the handler; the rest depends on the page.
type Page struct {
	AppName       string
	CopyrightYear int
	PostNeoType   string
	LoggedIn      bool
	UserID        int64
	Username      string
	LikedPosts    []int64
	GoogleEnabled bool

	Title       string
	User        *model.User
	Posts       []model.Post
	Sort        string
	Query       string
	Message     string
	Error       string
	LoginError  string
	RegError    string
	PendingName string
}

// PostView is what the "post" template renders for one post.
type PostView struct {
	Post  model.Post
	Own   bool
	Liked bool
}

var funcs = template.FuncMap{
	"lower": strings.ToLower,
	"formatTime": func(t time.Time) string {
		return t.Local().Format("Jan 2, 2006 15:04")
	},
	"postView": func(p Page, post model.Post) PostView {
		return PostView{
			Post:  post,
			Own:   p.LoggedIn && p.Username != "" && p.Username == post.Username,
			Liked: slices.Contains(p.LikedPosts, post.ID),
		}
	},
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every page template. It fails if any template is malformed.
func New() (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("view: parsing %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages}, nil
}

// Render executes page into w. The output is buffered so a template error
// doesn't leave a half-written page behind.
func (r *Renderer) Render(w io.Writer, page string, data Page) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("view: unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("view: rendering %s: %w", page, err)
	}

	_, err := buf.WriteTo(w)
	return err
}
