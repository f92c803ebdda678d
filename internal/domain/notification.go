package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// Notification announces that an object was created in the object store.
// It is produced once per creation event and never modified afterwards.
type Notification struct {
	ObjectKey string    `json:"object_key"`
	Bucket    string    `json:"bucket"`
	EventTime time.Time `json:"event_time"`
}

// NewNotification creates a validated Notification for an object-creation event.
func NewNotification(bucket, objectKey string, eventTime time.Time) (*Notification, error) {
	n := &Notification{
		ObjectKey: objectKey,
		Bucket:    bucket,
		EventTime: eventTime.UTC(),
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate checks that the notification names an object and carries an event time.
func (n *Notification) Validate() error {
	if strings.TrimSpace(n.ObjectKey) == "" {
		return fmt.Errorf("%w: object key is empty", ErrInvalidNotification)
	}
	if strings.TrimSpace(n.Bucket) == "" {
		return fmt.Errorf("%w: bucket is empty", ErrInvalidNotification)
	}
	if n.EventTime.IsZero() {
		return fmt.Errorf("%w: event time is missing", ErrInvalidNotification)
	}
	if _, err := ImageIDFromKey(n.ObjectKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	return nil
}

// ImageID returns the identifier under which results for this object are stored.
func (n *Notification) ImageID() string {
	id, _ := ImageIDFromKey(n.ObjectKey)
	return id
}

// Encode serializes the notification into a queue message body.
func (n *Notification) Encode() ([]byte, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

// ImageIDFromKey derives an image identifier from an object key: the base
// name without its extension. "uploads/img1.jpeg" becomes "img1".
func ImageIDFromKey(objectKey string) (string, error) {
	base := path.Base(objectKey)
	id := strings.TrimSuffix(base, path.Ext(base))
	if id == "" || id == "." || id == "/" {
		return "", fmt.Errorf("%w: cannot derive from key %q", ErrInvalidImageID, objectKey)
	}
	return id, nil
}

// s3Event is the subset of the S3 event-notification envelope that carries
// object-creation details.
type s3Event struct {
	Records []struct {
		EventName string    `json:"eventName"`
		EventTime time.Time `json:"eventTime"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
	Event string `json:"Event"`
}

// ParseNotification decodes a queue message body. Both the native encoding
// produced by Encode and the S3 event-notification envelope are accepted.
// Any body that does not yield exactly one valid notification, including the
// S3 test event, returns an error wrapping ErrInvalidNotification.
func ParseNotification(body []byte) (*Notification, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}

	if _, ok := probe["Records"]; ok {
		return parseS3Event(body)
	}
	if _, ok := probe["Event"]; ok {
		return nil, fmt.Errorf("%w: not an object-creation event", ErrInvalidNotification)
	}

	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

func parseS3Event(body []byte) (*Notification, error) {
	var ev s3Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	if len(ev.Records) != 1 {
		return nil, fmt.Errorf("%w: expected one record, got %d", ErrInvalidNotification, len(ev.Records))
	}

	rec := ev.Records[0]
	if rec.EventName != "" && !strings.HasPrefix(rec.EventName, "ObjectCreated:") {
		return nil, fmt.Errorf("%w: unsupported event %q", ErrInvalidNotification, rec.EventName)
	}

	// S3 form-encodes object keys in event payloads.
	key, err := url.QueryUnescape(rec.S3.Object.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed object key: %v", ErrInvalidNotification, err)
	}

	n := Notification{
		ObjectKey: key,
		Bucket:    rec.S3.Bucket.Name,
		EventTime: rec.EventTime.UTC(),
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}
