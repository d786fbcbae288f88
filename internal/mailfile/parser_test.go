package mailfile

import (
	"strings"
	"testing"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		subject     string
		sender      string
		body        string
		notContains string
	}{
		{
			name: "plain",
			raw: `From: "Bank Support" <support@bank.example>
Subject: Verify your account
To: me@example.com

Click here to verify.
`,
			subject: "Verify your account",
			sender:  "support@bank.example",
			body:    "Click here to verify.",
		},
		{
			name: "encoded subject",
			raw: `From: alice@example.com
Subject: =?UTF-8?B?Q2Fmw6kgbWVldGluZw==?=

See you there.
`,
			subject: "Café meeting",
			sender:  "alice@example.com",
			body:    "See you there.",
		},
		{
			name: "multipart prefers plain",
			raw: `From: Promo <promo@shop.example>
Subject: Deals
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="XYZ"

--XYZ
Content-Type: text/html; charset=utf-8

<p>HTML version</p>
--XYZ
Content-Type: text/plain; charset=utf-8

Plain version
--XYZ--
`,
			subject:     "Deals",
			sender:      "promo@shop.example",
			body:        "Plain version",
			notContains: "HTML version",
		},
		{
			name: "html only is stripped",
			raw: `From: news@example.com
Subject: News
Content-Type: text/html

<html><body><p>Hello &amp; welcome</p><p>Second</p></body></html>
`,
			subject:     "News",
			sender:      "news@example.com",
			body:        "Hello & welcome",
			notContains: "<p>",
		},
		{
			name: "base64 part and attachment skipped",
			raw: `From: hr@corp.example
Subject: Payroll
Content-Type: multipart/mixed; boundary=b1

--b1
Content-Type: text/plain
Content-Transfer-Encoding: base64

VXBkYXRlIHlvdXIg
YmFuayBkZXRhaWxz
--b1
Content-Type: text/plain
Content-Disposition: attachment; filename="notes.txt"

secret attachment
--b1--
`,
			subject:     "Payroll",
			sender:      "hr@corp.example",
			body:        "Update your bank details",
			notContains: "secret attachment",
		},
		{
			name: "quoted printable",
			raw: `From: a@b.example
Subject: QP
Content-Type: text/plain
Content-Transfer-Encoding: quoted-printable

Soft=
 break and =3D sign
`,
			subject: "QP",
			sender:  "a@b.example",
			body:    "Soft break and = sign",
		},
		{
			name: "unparseable from kept raw",
			raw: `From: not an address
Subject: Odd

body
`,
			subject: "Odd",
			sender:  "not an address",
			body:    "body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse(strings.NewReader(crlf(tt.raw)))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if req.Subject != tt.subject {
				t.Errorf("subject = %q, want %q", req.Subject, tt.subject)
			}
			if req.Sender != tt.sender {
				t.Errorf("sender = %q, want %q", req.Sender, tt.sender)
			}
			if !strings.Contains(req.Body, tt.body) {
				t.Errorf("body %q does not contain %q", req.Body, tt.body)
			}
			if tt.notContains != "" && strings.Contains(req.Body, tt.notContains) {
				t.Errorf("body %q should not contain %q", req.Body, tt.notContains)
			}
		})
	}
}

func TestParse_Garbage(t *testing.T) {
	if _, err := Parse(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
}
