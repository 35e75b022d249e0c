package storage

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/bwise1/campus_voice/config"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/pkg/errors"
)

type Cloudinary struct {
	CLD *cloudinary.Cloudinary
}

func NewCloudinary(cfg *config.Config) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, errors.Wrap(err, "initialize cloudinary")
	}
	cld.Config.URL.Secure = true
	return &Cloudinary{CLD: cld}, nil
}

// publicID strips the extension; Cloudinary derives the format itself.
func publicID(objectPath string) string {
	return strings.TrimSuffix(objectPath, path.Ext(objectPath))
}

func (c *Cloudinary) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	p, err := cleanPath(objectPath)
	if err != nil {
		return "", err
	}
	resp, err := c.CLD.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     publicID(p),
		Overwrite:    api.Bool(false),
		ResourceType: "image",
	})
	if err != nil {
		return "", errors.Wrap(err, "cloudinary upload")
	}
	if resp.Error.Message != "" {
		return "", errors.Errorf("cloudinary upload: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}

func (c *Cloudinary) PublicURL(objectPath string) (string, error) {
	p, err := cleanPath(objectPath)
	if err != nil {
		return "", err
	}
	img, err := c.CLD.Image(publicID(p))
	if err != nil {
		return "", errors.Wrap(err, "cloudinary asset")
	}
	url, err := img.String()
	if err != nil {
		return "", errors.Wrap(err, "cloudinary url")
	}
	return url, nil
}
