package portal

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/bwise1/campus_voice/util"
	"github.com/bwise1/campus_voice/util/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// MaxImageBytes caps an attachment at 5 MiB.
const MaxImageBytes = 5 << 20

var allowedImageTypes = []string{"image/jpeg", "image/png"}

// Image is an attachment waiting to be uploaded.
type Image struct {
	Filename string
	Data     []byte
}

// Form is a ticket being composed. NewForm returns one with its defaults.
type Form struct {
	Title       string           `validate:"min=10,max=100"`
	Description string           `validate:"min=20,max=1000"`
	Category    model.Category   `validate:"required,category"`
	Severity    model.Severity   `validate:"required,severity"`
	Visibility  model.Visibility `validate:"required,visibility"`
	Image       *Image           `validate:"-"`
}

func NewForm() *Form {
	f := &Form{}
	f.Reset()
	return f
}

// FormFromRequest fills a fresh form from the JSON request body.
func FormFromRequest(req model.CreateTicketRequest) *Form {
	f := NewForm()
	f.Title = strings.TrimSpace(req.Title)
	f.Description = strings.TrimSpace(req.Description)
	f.Category = req.Category
	f.Severity = req.Severity
	if req.Visibility != "" {
		f.Visibility = req.Visibility
	}
	return f
}

// Reset clears every field and drops any attached image.
func (f *Form) Reset() {
	*f = Form{Visibility: model.VisibilityPrivate}
}

var ruleMessages = map[string]string{
	"required":   "is required",
	"category":   "must be academic, infrastructure, staff, facilities or other",
	"severity":   "must be low, medium or critical",
	"visibility": "must be private or public",
}

func describeRule(rule string) string {
	if msg, ok := ruleMessages[rule]; ok {
		return msg
	}
	if n, ok := strings.CutPrefix(rule, "min="); ok {
		return "must be at least " + n + " characters"
	}
	if n, ok := strings.CutPrefix(rule, "max="); ok {
		return "must be at most " + n + " characters"
	}
	return "is invalid"
}

// Validate checks the form locally and returns a *ValidationError listing
// every offending field.
func (f *Form) Validate() error {
	fields := map[string]string{}
	if err := util.ValidateStruct(f); err != nil {
		for field, rule := range util.FieldErrors(err) {
			fields[strings.ToLower(field)] = describeRule(rule)
		}
	}
	if f.Image != nil {
		if _, err := f.Image.contentType(); err != nil {
			fields["image"] = err.Error()
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// contentType returns the detected MIME type and the file extension to store under.
func (img *Image) contentType() (*mimetype.MIME, error) {
	if len(img.Data) == 0 {
		return nil, errors.New("is empty")
	}
	if len(img.Data) > MaxImageBytes {
		return nil, errors.Errorf("must be at most %d MB", MaxImageBytes>>20)
	}
	mt := mimetype.Detect(img.Data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return nil, errors.Errorf("must be a JPEG or PNG image, got %s", mt.String())
	}
	return mt, nil
}

// Submitter turns a valid form into a stored ticket.
type Submitter struct {
	tickets store.TicketStore
	blobs   storage.Blob
	events  EventPublisher
	log     zerolog.Logger
}

func NewSubmitter(tickets store.TicketStore, blobs storage.Blob, events EventPublisher, log zerolog.Logger) *Submitter {
	return &Submitter{
		tickets: tickets,
		blobs:   blobs,
		events:  publisherOrNop(events),
		log:     log.With().Str("component", "submission").Logger(),
	}
}

// Submit validates f, uploads its image if any, then inserts the ticket. A
// failed upload means no ticket is inserted. On success f is reset.
func (s *Submitter) Submit(ctx context.Context, f *Form, creator string) (model.Ticket, error) {
	if creator == "" {
		return model.Ticket{}, ErrNoViewer
	}
	if err := f.Validate(); err != nil {
		return model.Ticket{}, err
	}

	var imageURL *string
	if f.Image != nil {
		url, err := s.upload(ctx, f.Image, creator)
		if err != nil {
			return model.Ticket{}, err
		}
		imageURL = &url
	}

	created, err := s.tickets.Insert(ctx, model.Ticket{
		Title:       f.Title,
		Description: f.Description,
		Category:    f.Category,
		Severity:    f.Severity,
		Visibility:  f.Visibility,
		CreatedBy:   creator,
		ImageURL:    imageURL,
	})
	if err != nil {
		if imageURL != nil {
			s.log.Warn().Str("image_url", *imageURL).Msg("ticket insert failed after upload; attachment orphaned")
		}
		return model.Ticket{}, errors.Wrapf(ErrSubmission, "insert ticket: %v", err)
	}

	s.log.Info().
		Str("ticket_id", created.ID).
		Str("created_by", creator).
		Str("visibility", string(created.Visibility)).
		Msg("ticket submitted")
	if err := s.events.Publish(ctx, EventTicketCreated, created); err != nil {
		s.log.Warn().Err(err).Msg("publish ticket event")
	}

	f.Reset()
	return created, nil
}

func (s *Submitter) upload(ctx context.Context, img *Image, creator string) (string, error) {
	if s.blobs == nil {
		return "", errors.Wrap(ErrSubmission, "attachments are not configured")
	}
	mt, err := img.contentType()
	if err != nil {
		return "", invalid("image", err.Error())
	}

	objectPath := fmt.Sprintf("tickets/%s/%s%s", creator, uuid.NewString(), mt.Extension())
	url, err := s.blobs.Upload(ctx, objectPath, img.Data, mt.String())
	if err != nil {
		return "", errors.Wrapf(ErrSubmission, "upload image: %v", err)
	}
	return url, nil
}
