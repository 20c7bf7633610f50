package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lambertxiao/go-tweetfs/pkg/config"
	"github.com/lambertxiao/go-tweetfs/pkg/publish"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Post publishes a single text without mounting anything, which is handy to
// check the credentials.
func Post(c *cli.Context) error {
	text, err := postText(c.Args(), os.Stdin)
	if err != nil {
		return err
	}

	creds, err := config.LoadCredentials(c.String(C_ENV_FILE))
	if err != nil {
		return err
	}

	ctx := context.Background()
	if timeout := c.Duration(C_PUBLISH_TIMEOUT); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	publisher := publish.NewTwitterPublisher(c.String(C_API_ENDPOINT), creds)
	if err := publisher.Publish(ctx, text); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "published %d bytes\n", len(text))
	return nil
}

func postText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	buf, err := io.ReadAll(stdin)
	if err != nil {
		return "", errors.Wrap(err, "read stdin")
	}
	return publish.Decode(buf), nil
}
