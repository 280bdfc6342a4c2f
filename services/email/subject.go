package emailsvc

import (
	"strings"
	texttmpl "text/template"

	"github.com/youpass/youpass/core"
)

const defaultSubjectFormat = "[{{.AppName}}] {{.Subject}}"

type subjectData struct {
	AppName string
	Subject string
}

// subjectFormat renders outgoing subjects from Config.EmailSubjectFormat.
type subjectFormat struct {
	appName string
	tmpl    *texttmpl.Template
}

func newSubjectFormat(conf *core.Config, logger core.Logger) subjectFormat {
	format := conf.EmailSubjectFormat
	if format == "" {
		format = defaultSubjectFormat
	}
	tmpl, err := texttmpl.New("subject").Parse(format)
	if err != nil {
		logger.Warn("invalid email subject format, falling back to the default", err,
			map[string]interface{}{"format": format})
		tmpl = texttmpl.Must(texttmpl.New("subject").Parse(defaultSubjectFormat))
	}
	return subjectFormat{appName: conf.AppName, tmpl: tmpl}
}

// render returns the formatted subject on a single line. The bare subject is used if the format fails to execute.
func (f subjectFormat) render(subject string) string {
	var b strings.Builder
	out := subject
	if err := f.tmpl.Execute(&b, subjectData{AppName: f.appName, Subject: subject}); err == nil {
		out = b.String()
	}
	return strings.Join(strings.Fields(out), " ")
}
