package mailer

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const footer = `<br>
<p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>`

var (
	approvalHTML = htmltemplate.Must(htmltemplate.New("approval").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #333;">Registration Approved</h2>
<p>Dear {{.FullName}},</p>
<p>Your registration for the University Staff Directory has been approved by the administrator.</p>
<p>You can now log in to your account and manage your profile.</p>
<p>Thank you for joining our directory.</p>
` + footer + `
</div>`))
	approvalText = texttemplate.Must(texttemplate.New("approval").Parse(`Dear {{.FullName}},

Your registration for the University Staff Directory has been approved by the administrator.

You can now log in to your account and manage your profile.

Thank you for joining our directory.`))

	rejectionHTML = htmltemplate.Must(htmltemplate.New("rejection").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #333;">Registration Update</h2>
<p>Dear {{.FullName}},</p>
<p>Thank you for your interest in joining the University Staff Directory.</p>
<p>After reviewing your application, we regret to inform you that your registration could not be approved at this time.</p>
<p>If you believe this is an error or have questions, please contact the administrator for more information.</p>
` + footer + `
</div>`))
	rejectionText = texttemplate.Must(texttemplate.New("rejection").Parse(`Dear {{.FullName}},

Thank you for your interest in joining the University Staff Directory.

After reviewing your application, we regret to inform you that your registration could not be approved at this time.

If you believe this is an error or have questions, please contact the administrator for more information.`))

	registrationHTML = htmltemplate.Must(htmltemplate.New("registration").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #333;">New Staff Registration</h2>
<p>A new staff member has registered and is awaiting approval:</p>
<ul>
<li><strong>Name:</strong> {{.FullName}}</li>
<li><strong>Staff ID:</strong> {{.StaffID}}</li>
<li><strong>Email:</strong> {{.Email}}</li>
</ul>
<p>Please log in to the admin panel to review and approve this registration.</p>
` + footer + `
</div>`))
	registrationText = texttemplate.Must(texttemplate.New("registration").Parse(`New Staff Registration

A new staff member has registered and is awaiting approval:

Name: {{.FullName}}
Staff ID: {{.StaffID}}
Email: {{.Email}}

Please log in to the admin panel to review and approve this registration.`))
)

const (
	SubjectApproved        = "Staff Directory Registration Approved"
	SubjectRejected        = "Staff Directory Registration - Update"
	SubjectNewRegistration = "New Staff Registration Pending Approval"
)

// Recipient is the data the notification templates need about a staff member.
type Recipient struct {
	FullName string
	StaffID  string
	Email    string
}

// Rendered is a subject with its HTML and plain-text bodies.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

func ApprovalEmail(r Recipient) (Rendered, error) {
	return render(SubjectApproved, approvalHTML, approvalText, r)
}

func RejectionEmail(r Recipient) (Rendered, error) {
	return render(SubjectRejected, rejectionHTML, rejectionText, r)
}

func NewRegistrationEmail(r Recipient) (Rendered, error) {
	return render(SubjectNewRegistration, registrationHTML, registrationText, r)
}

func render(subject string, h *htmltemplate.Template, t *texttemplate.Template, data Recipient) (Rendered, error) {
	var hb, tb bytes.Buffer
	if err := h.Execute(&hb, data); err != nil {
		return Rendered{}, err
	}
	if err := t.Execute(&tb, data); err != nil {
		return Rendered{}, err
	}
	return Rendered{Subject: subject, HTML: hb.String(), Text: tb.String()}, nil
}
