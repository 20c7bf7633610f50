package publish

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/dghubble/oauth1"
	jsoniter "github.com/json-iterator/go"
	"github.com/lambertxiao/go-tweetfs/pkg/config"
	"github.com/lambertxiao/go-tweetfs/pkg/logg"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maximum bytes of an error response kept for the error message
const maxErrorBody = 4096

type TwitterPublisher struct {
	endpoint string
	client   *http.Client
}

type createTweetRequest struct {
	Text string `json:"text"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *apiError) message() string {
	var msgs []string
	if e.Title != "" {
		msgs = append(msgs, e.Title)
	}
	if e.Detail != "" {
		msgs = append(msgs, e.Detail)
	}
	for _, x := range e.Errors {
		msgs = append(msgs, x.Message)
	}
	return strings.Join(msgs, ": ")
}

// NewTwitterPublisher signs every request with the user context credentials.
func NewTwitterPublisher(endpoint string, creds *config.Credentials) *TwitterPublisher {
	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)

	return &TwitterPublisher{
		endpoint: endpoint,
		client:   cfg.Client(oauth1.NoContext, token),
	}
}

func (p *TwitterPublisher) Publish(ctx context.Context, text string) error {
	body, err := json.Marshal(&createTweetRequest{Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post status")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.message() != "" {
			return errors.Errorf("post status: %s: %s", resp.Status, apiErr.message())
		}
		return errors.Errorf("post status: %s", resp.Status)
	}

	var created createTweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return errors.Wrap(err, "decode post status response")
	}

	logg.Dlog.Debugf("status posted id:%s", created.Data.ID)
	return nil
}
