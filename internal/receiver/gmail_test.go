package receiver

import (
	"encoding/base64"
	"testing"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/priscillayouziqian/gmail-attachment-printer/internal/extract"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestGmailQuery(t *testing.T) {
	tests := []struct {
		name string
		opts FetchOptions
		want string
	}{
		{
			name: "all filters",
			opts: FetchOptions{From: "teacher@example.com", RequireAttachment: true, ProcessDays: 7},
			want: "from:teacher@example.com has:attachment newer_than:7d",
		},
		{
			name: "date only",
			opts: FetchOptions{ProcessDays: 3},
			want: "newer_than:3d",
		},
		{
			name: "none",
			opts: FetchOptions{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gmailQuery(tt.opts); got != tt.want {
				t.Errorf("gmailQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmailFromGmail(t *testing.T) {
	msg := &gmail.Message{
		Id: "18c0ffee",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "Teacher <teacher@example.com>"},
				{Name: "Subject", Value: "Fwd: Homework"},
				{Name: "Date", Value: "Tue, 9 Dec 2025 10:00:00 +0000"},
			},
			Body: &gmail.MessagePartBody{},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Body:     &gmail.MessagePartBody{},
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("Real body")}},
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>Real body</p>")}},
					},
				},
				{
					MimeType: "application/pdf",
					Filename: "hw.pdf",
					Body:     &gmail.MessagePartBody{AttachmentId: "att-1", Size: 1024},
				},
			},
		},
	}

	email := emailFromGmail(msg)
	if email.ID != "18c0ffee" || email.Subject != "Fwd: Homework" {
		t.Errorf("email = %+v", email)
	}
	if want := time.Date(2025, 12, 9, 10, 0, 0, 0, time.UTC); !email.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", email.Date, want)
	}
	if got := extract.SelectBody(email.Parts); got != "Real body" {
		t.Errorf("SelectBody() = %q, want Real body", got)
	}
	if len(email.Attachments) != 1 || email.Attachments[0].ID != "att-1" || email.Attachments[0].Filename != "hw.pdf" {
		t.Errorf("Attachments = %+v", email.Attachments)
	}
}

func TestEmailFromGmail_InternalDateFallback(t *testing.T) {
	msg := &gmail.Message{
		Id:           "x",
		InternalDate: 1765274400000,
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers:  []*gmail.MessagePartHeader{{Name: "Date", Value: "not a date"}},
			Body:     &gmail.MessagePartBody{Data: b64("single part")},
		},
	}

	email := emailFromGmail(msg)
	if email.Date.UnixMilli() != 1765274400000 {
		t.Errorf("Date = %v, want internal date", email.Date)
	}
	if got := extract.SelectBody(email.Parts); got != "single part" {
		t.Errorf("SelectBody() = %q, want single part", got)
	}
}

func TestPartNode_Kinds(t *testing.T) {
	tests := []struct {
		name string
		part *gmail.MessagePart
		want extract.ContentKind
	}{
		{"plain", &gmail.MessagePart{MimeType: "text/plain"}, extract.KindPlainText},
		{"html", &gmail.MessagePart{MimeType: "text/html"}, extract.KindHTML},
		{"empty multipart", &gmail.MessagePart{MimeType: "multipart/related"}, extract.KindContainer},
		{"named text file", &gmail.MessagePart{MimeType: "text/plain", Filename: "notes.txt"}, extract.KindOther},
		{"image", &gmail.MessagePart{MimeType: "image/png"}, extract.KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := partNode(tt.part).Kind; got != tt.want {
				t.Errorf("partNode().Kind = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGmailAttachments_Nested(t *testing.T) {
	payload := &gmail.MessagePart{
		Parts: []*gmail.MessagePart{
			{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{Filename: "a.docx", Body: &gmail.MessagePartBody{AttachmentId: "A"}},
					{Filename: "small.txt", Body: &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("hi"))}},
					{Filename: "empty.bin", Body: &gmail.MessagePartBody{}},
				},
			},
		},
	}

	atts := gmailAttachments(payload)
	if len(atts) != 2 {
		t.Fatalf("len(attachments) = %d, want 2", len(atts))
	}
	if atts[0].ID != "A" {
		t.Errorf("atts[0] = %+v", atts[0])
	}
	if string(atts[1].Data) != "hi" {
		t.Errorf("atts[1].Data = %q, want hi", atts[1].Data)
	}
}

func TestDecodeData(t *testing.T) {
	for _, in := range []string{b64("?>?>"), base64.RawURLEncoding.EncodeToString([]byte("?>?>"))} {
		got, err := decodeData(in)
		if err != nil {
			t.Fatalf("decodeData(%q) error = %v", in, err)
		}
		if string(got) != "?>?>" {
			t.Errorf("decodeData(%q) = %q", in, got)
		}
	}
}
