package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/vburojevic/ttycast/internal/asciicast"
	"github.com/vburojevic/ttycast/internal/domain"
	"github.com/vburojevic/ttycast/internal/upload"
)

// newUploader is overridable in tests.
var newUploader = func(url, username, token string) (upload.Uploader, error) {
	return upload.NewHTTPUploader(url, username, token)
}

// UploadCmd sends a transcript to an asciicast server
type UploadCmd struct {
	File     string `arg:"" help:"Transcript (json or asciicast) or a capture to decode first"`
	Sensor   string `default:"${config_sensor}" help:"Sensor name for raw captures"`
	URL      string `default:"${config_upload_url}" help:"Upload endpoint"`
	Username string `help:"Basic auth username (default: upload.username)"`
	Token    string `help:"Basic auth token (default: upload.token or TTYCAST_UPLOAD_TOKEN)"`
}

// Run executes the upload command
func (c *UploadCmd) Run(globals *Globals) error {
	cfg := globals.config()
	url, username, token := c.URL, c.Username, c.Token
	if url == "" {
		url = cfg.Upload.URL
	}
	if username == "" {
		username = cfg.Upload.Username
	}
	if token == "" {
		token = cfg.Upload.Token
	}

	uploader, err := newUploader(url, username, token)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_FLAGS", err.Error(), "--url must be an absolute http(s) URL")
	}

	t, err := loadTranscript(globals, c.File, c.Sensor)
	if err != nil {
		return err
	}
	// the endpoint expects asciicast v1 with a "stdout" event list
	doc, err := asciicast.Marshal(t, asciicast.FormatAsciicast)
	if err != nil {
		return outputErrorCommon(globals, "ENCODE_FAILED", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	globals.log().With("source", c.File, "url", url).Debug("uploading %d bytes", len(doc))
	reply, err := uploader.Upload(ctx, doc)
	if err != nil {
		var statusErr *upload.StatusError
		if errors.As(err, &statusErr) {
			return outputErrorCommon(globals, "UPLOAD_FAILED", statusErr.Error(), "check upload.username and upload.token")
		}
		return outputErrorCommon(globals, "UPLOAD_FAILED", err.Error())
	}

	return newEmitter(globals).Emit(domain.NewUploaded(c.File, reply))
}
