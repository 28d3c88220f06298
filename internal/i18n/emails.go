package i18n

import (
	"html"
	"strconv"
	"strings"
)

type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

type emailStrings struct {
	WelcomeSubject string
	WelcomeText    string
	WelcomeHTML    string
	// Appended to the welcome email when the account waits for approval.
	WelcomePendingText string
	WelcomePendingHTML string

	TwoFactorSubject string
	TwoFactorText    string
	TwoFactorHTML    string

	PasswordResetSubject string
	PasswordResetText    string
	PasswordResetHTML    string

	ApprovedSubject string
	ApprovedText    string
	ApprovedHTML    string

	RejectedSubject string
	RejectedText    string
	RejectedHTML    string

	Roles map[string]string
}

var emailTranslations = map[string]emailStrings{
	"en": {
		WelcomeSubject: "Welcome to the job board",
		WelcomeText:    "Hi {name},\n\nyour {role} account has been created.",
		WelcomeHTML: "<p>Hi {name},</p>" +
			"<p>your <strong>{role}</strong> account has been created.</p>",
		WelcomePendingText: "\n\nAn administrator will review your account. We will email you once it is approved.",
		WelcomePendingHTML: "<p>An administrator will review your account. We will email you once it is approved.</p>",

		TwoFactorSubject: "Your login code",
		TwoFactorText:    "Hi {name},\n\nyour login code is {code}. It is valid for {minutes} minutes.\nIf you did not try to sign in, change your password.",
		TwoFactorHTML: "<p>Hi {name},</p>" +
			"<p>your login code is <strong>{code}</strong>. It is valid for {minutes} minutes.</p>" +
			"<p>If you did not try to sign in, change your password.</p>",

		PasswordResetSubject: "Reset your password",
		PasswordResetText:    "Hi {name},\n\nreset your password: {link}\nThe link expires in {minutes} minutes.\nIf you did not request this, ignore this email.",
		PasswordResetHTML: "<p>Hi {name},</p>" +
			"<p><a href=\"{link}\">Reset password</a></p>" +
			"<p>The link expires in {minutes} minutes.</p>" +
			"<p>If you did not request this, ignore this email.</p>",

		ApprovedSubject: "Your recruiter account is approved",
		ApprovedText:    "Hi {name},\n\nyour recruiter account has been approved. You can sign in at {link}.",
		ApprovedHTML: "<p>Hi {name},</p>" +
			"<p>your recruiter account has been approved.</p>" +
			"<p><a href=\"{link}\">Sign in</a></p>",

		RejectedSubject: "Your recruiter account was not approved",
		RejectedText:    "Hi {name},\n\nyour recruiter account was not approved and has been deactivated.",
		RejectedHTML: "<p>Hi {name},</p>" +
			"<p>your recruiter account was not approved and has been deactivated.</p>",

		Roles: map[string]string{"SEEKER": "job seeker", "RECRUITER": "recruiter", "ADMIN": "administrator"},
	},
	"de": {
		WelcomeSubject: "Willkommen bei der Jobbörse",
		WelcomeText:    "Hallo {name},\n\ndein Konto als {role} wurde erstellt.",
		WelcomeHTML: "<p>Hallo {name},</p>" +
			"<p>dein Konto als <strong>{role}</strong> wurde erstellt.</p>",
		WelcomePendingText: "\n\nEin Administrator prüft dein Konto. Wir benachrichtigen dich per E-Mail, sobald es freigegeben ist.",
		WelcomePendingHTML: "<p>Ein Administrator prüft dein Konto. Wir benachrichtigen dich per E-Mail, sobald es freigegeben ist.</p>",

		TwoFactorSubject: "Dein Anmeldecode",
		TwoFactorText:    "Hallo {name},\n\ndein Anmeldecode lautet {code}. Er ist {minutes} Minuten gültig.\nWenn du dich nicht anmelden wolltest, ändere dein Passwort.",
		TwoFactorHTML: "<p>Hallo {name},</p>" +
			"<p>dein Anmeldecode lautet <strong>{code}</strong>. Er ist {minutes} Minuten gültig.</p>" +
			"<p>Wenn du dich nicht anmelden wolltest, ändere dein Passwort.</p>",

		PasswordResetSubject: "Passwort zurücksetzen",
		PasswordResetText:    "Hallo {name},\n\nsetze dein Passwort zurück: {link}\nDer Link läuft in {minutes} Minuten ab.\nFalls du das nicht angefordert hast, ignoriere diese E-Mail.",
		PasswordResetHTML: "<p>Hallo {name},</p>" +
			"<p><a href=\"{link}\">Passwort zurücksetzen</a></p>" +
			"<p>Der Link läuft in {minutes} Minuten ab.</p>" +
			"<p>Falls du das nicht angefordert hast, ignoriere diese E-Mail.</p>",

		ApprovedSubject: "Dein Recruiter-Konto wurde freigegeben",
		ApprovedText:    "Hallo {name},\n\ndein Recruiter-Konto wurde freigegeben. Du kannst dich unter {link} anmelden.",
		ApprovedHTML: "<p>Hallo {name},</p>" +
			"<p>dein Recruiter-Konto wurde freigegeben.</p>" +
			"<p><a href=\"{link}\">Anmelden</a></p>",

		RejectedSubject: "Dein Recruiter-Konto wurde nicht freigegeben",
		RejectedText:    "Hallo {name},\n\ndein Recruiter-Konto wurde nicht freigegeben und deaktiviert.",
		RejectedHTML: "<p>Hallo {name},</p>" +
			"<p>dein Recruiter-Konto wurde nicht freigegeben und deaktiviert.</p>",

		Roles: map[string]string{"SEEKER": "Jobsuchende:r", "RECRUITER": "Recruiter:in", "ADMIN": "Administrator:in"},
	},
}

func emailStringsForLocale(locale string) emailStrings {
	key := NormalizeLocale(locale)
	if val, ok := emailTranslations[key]; ok {
		return val
	}
	return emailTranslations[DefaultLocale]
}

func renderTemplate(tmpl string, values map[string]string, escape bool) string {
	if tmpl == "" || len(values) == 0 {
		return tmpl
	}

	replacements := make([]string, 0, len(values)*2)
	for key, value := range values {
		if escape {
			value = html.EscapeString(value)
		}
		replacements = append(replacements, "{"+key+"}", value)
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}

func render(subject, text, htmlTmpl string, values map[string]string) EmailContent {
	return EmailContent{
		Subject: subject,
		Text:    renderTemplate(text, values, false),
		HTML:    renderTemplate(htmlTmpl, values, true),
	}
}

func WelcomeEmail(locale, name, role string, pendingApproval bool) EmailContent {
	templates := emailStringsForLocale(locale)
	roleLabel, ok := templates.Roles[strings.ToUpper(role)]
	if !ok {
		roleLabel = strings.ToLower(role)
	}
	text, htmlTmpl := templates.WelcomeText, templates.WelcomeHTML
	if pendingApproval {
		text += templates.WelcomePendingText
		htmlTmpl += templates.WelcomePendingHTML
	}
	return render(templates.WelcomeSubject, text, htmlTmpl, map[string]string{
		"name": name,
		"role": roleLabel,
	})
}

func TwoFactorEmail(locale, name, code string, minutes int) EmailContent {
	templates := emailStringsForLocale(locale)
	return render(templates.TwoFactorSubject, templates.TwoFactorText, templates.TwoFactorHTML, map[string]string{
		"name":    name,
		"code":    code,
		"minutes": strconv.Itoa(minutes),
	})
}

func PasswordResetEmail(locale, name, link string, minutes int) EmailContent {
	templates := emailStringsForLocale(locale)
	return render(templates.PasswordResetSubject, templates.PasswordResetText, templates.PasswordResetHTML, map[string]string{
		"name":    name,
		"link":    link,
		"minutes": strconv.Itoa(minutes),
	})
}

func RecruiterApprovedEmail(locale, name, loginLink string) EmailContent {
	templates := emailStringsForLocale(locale)
	return render(templates.ApprovedSubject, templates.ApprovedText, templates.ApprovedHTML, map[string]string{
		"name": name,
		"link": loginLink,
	})
}

func RecruiterRejectedEmail(locale, name string) EmailContent {
	templates := emailStringsForLocale(locale)
	return render(templates.RejectedSubject, templates.RejectedText, templates.RejectedHTML, map[string]string{
		"name": name,
	})
}
