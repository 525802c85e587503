package dispatch

import (
	"context"
	"strings"

	"cabbooking/models"
	"cabbooking/services/prompts"
	"cabbooking/services/schema"
	"cabbooking/utils"
)

const (
	ResourceAllBookings = "booking://all"
	ResourceHistory     = "booking://history"
	ResourceAllCabs     = "cabs://all"
	// ResourceBooking is a URI template; {booking_id} is a booking id.
	ResourceBooking = "booking://{booking_id}"

	bookingScheme = "booking://"
	jsonMime      = "application/json"
	historyLimit  = 100
)

// ResourceContent is the result of a resource read.
type ResourceContent struct {
	URI      string
	MimeType string
	Data     any
}

// IsTemplate reports whether a resource contract is a URI template.
func IsTemplate(c *schema.Contract) bool {
	return strings.Contains(c.Name, "{")
}

func (d *Dispatcher) registerResources() error {
	for _, c := range []schema.Contract{
		{Name: ResourceAllBookings, Title: "All Bookings", Description: "Complete list of all cab bookings", MimeType: jsonMime},
		{Name: ResourceAllCabs, Title: "All Cabs", Description: "Every provisioned cab with its location and status", MimeType: jsonMime},
		{Name: ResourceHistory, Title: "Booking History", Description: "Most recent finished bookings, newest first", MimeType: jsonMime},
		{Name: ResourceBooking, Title: "Booking", Description: "A single booking by ID", MimeType: jsonMime},
	} {
		c.Kind = schema.KindResource
		c.ReadOnly = true
		c.Idempotent = true
		if err := d.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ReadResource returns the data behind uri. Unknown URIs and unknown
// booking ids are NotFoundErrors.
func (d *Dispatcher) ReadResource(ctx context.Context, uri string) (ResourceContent, error) {
	content := ResourceContent{URI: uri, MimeType: jsonMime}
	switch uri {
	case ResourceAllBookings:
		content.Data = d.bookings.Bookings()
		return content, nil
	case ResourceAllCabs:
		content.Data = d.bookings.Cabs()
		return content, nil
	case ResourceHistory:
		if d.records == nil {
			content.Data = []models.HistoricalRecord{}
			return content, nil
		}
		records, err := d.records.List(ctx, historyLimit)
		if err != nil {
			return content, utils.NewInternalError(err, "read booking history")
		}
		content.Data = records
		return content, nil
	}

	if id, ok := strings.CutPrefix(uri, bookingScheme); ok && id != "" && !strings.Contains(id, "/") {
		b, err := d.bookings.CheckStatus(ctx, id)
		if err != nil {
			return content, err
		}
		content.Data = b
		return content, nil
	}
	return content, utils.NewNotFoundError("unknown resource %q", uri)
}

func (d *Dispatcher) registerPrompts() error {
	if d.catalog == nil {
		return nil
	}
	for _, t := range d.catalog.List() {
		err := d.registry.Register(schema.Contract{
			Name:        t.Name,
			Kind:        schema.KindPrompt,
			Title:       t.Title,
			Description: t.Description,
			Params:      t.Params(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// GetPrompt validates args against prompt name and renders it. A
// booking_id argument makes the booking available to the template.
func (d *Dispatcher) GetPrompt(ctx context.Context, name string, args map[string]any) (prompts.Rendered, error) {
	values, err := d.registry.Validate(schema.KindPrompt, name, args)
	if err != nil {
		return prompts.Rendered{}, err
	}
	data := prompts.Data{Args: make(map[string]string, len(values)), Locations: d.bookings.Locations()}
	for k := range values {
		data.Args[k] = values.String(k)
	}
	if id := values.String("booking_id"); id != "" {
		b, err := d.bookings.CheckStatus(ctx, id)
		if err != nil {
			return prompts.Rendered{}, err
		}
		data.Booking = &b
	}
	return d.catalog.Render(name, data)
}
