package uploader

import "context"

// Link is one published note.
type Link struct {
	Title string
	URL   string
}

// Publisher posts one markdown document and returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, title, markdown string) (string, error)
}
