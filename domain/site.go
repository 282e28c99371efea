package domain

// Site holds the text shown by the layout and the landing page.
type Site struct {
	Title       string
	Description string
	Footer      string
}
