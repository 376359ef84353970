// Package notifications holds the messages the shop sends its users.
package notifications

import (
	"html/template"

	"github.com/shashiranjanraj/leppupy/pkg/mail"
	"github.com/shashiranjanraj/leppupy/pkg/notification"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`
<h2>Bienvenido a LeppupyUrns</h2>
<p>Hola,</p>
<p>Somos LeppupyUrns, una entidad dedicada a proporcionar servicios únicos y personalizados.</p>
<p>Tu código de verificación es: <strong>{{.Code}}</strong></p>
<p>Por favor, usa este código para continuar con tu proceso de registro.</p>
<p>Atentamente,</p>
<p><strong>Equipo de LeppupyUrns</strong></p>
`))

// VerificationCode mails a one-time code used to set the account password.
type VerificationCode struct {
	Email string
	Code  string
}

func (VerificationCode) Via() []string { return []string{notification.ChannelMail} }

func (n VerificationCode) ToMail() (mail.Message, error) {
	return mail.To(n.Email).
		Subject("Tu Código de Verificación").
		Template(verificationTmpl, n).
		Build()
}
