package openlibrary

import "encoding/json"

// searchResponse is the envelope of a /search.json response.
type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

// searchDoc is one work in a search response. Most fields are plural even
// when a single value is expected.
type searchDoc struct {
	Key                 string   `json:"key"`
	Title               string   `json:"title"`
	AuthorName          []string `json:"author_name"`
	ISBN                []string `json:"isbn"`
	Publisher           []string `json:"publisher"`
	FirstPublishYear    int      `json:"first_publish_year"`
	NumberOfPagesMedian int      `json:"number_of_pages_median"`
	Subject             []string `json:"subject"`
	Language            []string `json:"language"`
	CoverID             int      `json:"cover_i"`
}

// workResponse is a /works/{id}.json response. Description is either a bare
// string or a typed object, so it is decoded lazily.
type workResponse struct {
	Title       string          `json:"title"`
	Description json.RawMessage `json:"description"`
	Covers      []int           `json:"covers"`
	Subjects    []string        `json:"subjects"`
	Authors     []workAuthorRef `json:"authors"`
}

type workAuthorRef struct {
	Author struct {
		Key string `json:"key"`
	} `json:"author"`
}

// authorResponse is a /authors/{id}.json response.
type authorResponse struct {
	Name string `json:"name"`
}
