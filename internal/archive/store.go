package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// TranscriptMessage is one scrubbed entry of an archived conversation.
type TranscriptMessage struct {
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
	Body      string    `json:"body"`
	Success   bool      `json:"success"`
}

// TranscriptRecord is the archived form of a finished conversation.
type TranscriptRecord struct {
	LeadID        string              `json:"lead_id"`
	CampaignID    string              `json:"campaign_id"`
	PropertyType  string              `json:"property_type"`
	ContactHash   string              `json:"contact_hash"`
	FinalStage    string              `json:"final_stage"`
	Qualification map[string]string   `json:"qualification,omitempty"`
	Messages      []TranscriptMessage `json:"messages"`
	MessageCount  int                 `json:"message_count"`
	Escalated     bool                `json:"escalated"`
	ArchivedAt    time.Time           `json:"archived_at"`
}

// ManifestEntry is one JSONL line in the monthly manifest.
type ManifestEntry struct {
	LeadID       string `json:"lead_id"`
	S3Key        string `json:"s3_key"`
	FinalStage   string `json:"final_stage"`
	MessageCount int    `json:"message_count"`
	ArchivedAt   string `json:"archived_at"`
}

// Store archives finished conversation transcripts to S3. If bucket is
// empty, all operations are no-ops.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates a transcript archive Store.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled reports whether archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

var _ conversation.TranscriptArchiver = (*Store)(nil)

// Archive converts the state into a scrubbed transcript record and writes it
// to S3, then appends to the monthly manifest.
func (s *Store) Archive(ctx context.Context, st *conversation.State) error {
	if !s.Enabled() {
		return nil
	}

	record := buildRecord(st)
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}

	now := record.ArchivedAt
	s3Key := fmt.Sprintf("transcripts/v1/by-date/%d/%02d/%02d/%s.json",
		now.Year(), now.Month(), now.Day(), record.LeadID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", s3Key, err)
	}

	s.logger.Info("archived conversation transcript",
		"lead_id", record.LeadID,
		"s3_key", s3Key,
		"message_count", record.MessageCount,
		"final_stage", record.FinalStage,
	)

	entry := ManifestEntry{
		LeadID:       record.LeadID,
		S3Key:        s3Key,
		FinalStage:   record.FinalStage,
		MessageCount: record.MessageCount,
		ArchivedAt:   now.Format(time.RFC3339),
	}
	if err := s.appendManifest(ctx, entry); err != nil {
		// The transcript is already archived; the manifest can be rebuilt.
		s.logger.Warn("failed to append manifest", "error", err, "lead_id", record.LeadID)
	}
	return nil
}

func buildRecord(st *conversation.State) TranscriptRecord {
	messages := make([]TranscriptMessage, 0, len(st.CommLog))
	for _, a := range st.CommLog {
		messages = append(messages, TranscriptMessage{
			Channel:   string(a.Channel),
			Timestamp: a.Timestamp,
			Body:      ScrubPII(a.Body),
			Success:   a.Success,
		})
	}

	qualification := make(map[string]string)
	for _, field := range conversation.RequiredFields(st.PropertyType) {
		if v := st.Qualification.Get(field); v != "" {
			qualification[field] = v
		}
	}

	contact := st.Phone
	if contact == "" {
		contact = st.Email
	}

	return TranscriptRecord{
		LeadID:        st.LeadID,
		CampaignID:    st.CampaignID,
		PropertyType:  string(st.PropertyType),
		ContactHash:   HashContact(contact),
		FinalStage:    string(st.Stage),
		Qualification: qualification,
		Messages:      messages,
		MessageCount:  len(messages),
		Escalated:     st.EscalationReason != "",
		ArchivedAt:    time.Now().UTC(),
	}
}

// appendManifest appends a JSONL line to the monthly manifest file using
// read-modify-write; S3 does not support append.
func (s *Store) appendManifest(ctx context.Context, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := time.Now().UTC()
	manifestKey := fmt.Sprintf("transcripts/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	if err == nil {
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	} else if !isNotFoundErr(err) {
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}
