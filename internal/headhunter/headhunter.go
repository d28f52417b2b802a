package headhunter

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://api.hh.ru"
	userAgent = "spigell/cv-matcher (spigelly@gmail.com)"
	// Max value for search per page.
	perPage = "100"
)

// Client is a read-only hh.ru API client. Token is optional for public
// vacancy endpoints.
type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:  token,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

func (c *Client) Search(ctx context.Context, params *SearchParams) (*Vacancies, error) {
	return c.search(ctx, params)
}

// Vacancy fetches the full vacancy, including its HTML description.
func (c *Client) Vacancy(ctx context.Context, id string) (*Vacancy, error) {
	var v Vacancy
	if err := c.getJSON(ctx, c.APIURL+SearchPath+"/"+id, nil, &v); err != nil {
		return nil, err
	}

	return &v, nil
}
