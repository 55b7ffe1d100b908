package newsapi

const statusError = "error"

// Every article field may be null on the wire.
type responseDTO struct {
	Status       string       `json:"status"`
	TotalResults int          `json:"totalResults"`
	Articles     []articleDTO `json:"articles"`
}

type articleDTO struct {
	Author      *string   `json:"author"`
	Content     *string   `json:"content"`
	Description *string   `json:"description"`
	PublishedAt *string   `json:"publishedAt"`
	Source      sourceDTO `json:"source"`
	Title       *string   `json:"title"`
	URL         *string   `json:"url"`
	URLToImage  *string   `json:"urlToImage"`
}

type sourceDTO struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

type errorDTO struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
