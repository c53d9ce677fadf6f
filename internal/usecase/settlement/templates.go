package settlement

import (
	"bytes"
	"fmt"
	"html/template"
)

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<body>
<h2>Thank you for your purchase</h2>
<p>Order <strong>{{.BuyOrder}}</strong> was paid successfully.</p>
<table>
<tr><td>Amount</td><td>{{.Amount}}</td></tr>
{{- if .AuthorizationCode}}
<tr><td>Authorization code</td><td>{{.AuthorizationCode}}</td></tr>
{{- end}}
{{- if .CardNumber}}
<tr><td>Card</td><td>**** {{.CardNumber}}</td></tr>
{{- end}}
{{- if .TransactionDate}}
<tr><td>Date</td><td>{{.TransactionDate}}</td></tr>
{{- end}}
</table>
{{- if .Files}}
<p>Your course materials are attached:</p>
<ul>{{range .Files}}<li>{{.}}</li>{{end}}</ul>
{{- end}}
{{- if .Missing}}
<p>Some materials are not ready yet and will be sent separately:</p>
<ul>{{range .Missing}}<li>{{.}}</li>{{end}}</ul>
{{- end}}
</body>
</html>
`))

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body>
<h2>New sale</h2>
<p>Order <strong>{{.BuyOrder}}</strong> for {{.Amount}} was confirmed by the gateway.</p>
<p>Purchaser: {{.Email}}</p>
<p>Courses: {{range $i, $c := .Courses}}{{if $i}}, {{end}}{{$c}}{{end}}</p>
{{- if .Missing}}
<p>Missing attachments: {{range $i, $c := .Missing}}{{if $i}}, {{end}}{{$c}}{{end}}</p>
{{- end}}
</body>
</html>
`))

type receiptView struct {
	BuyOrder          string
	Amount            string
	AuthorizationCode string
	CardNumber        string
	TransactionDate   string
	Files             []string
	Missing           []string
}

type confirmationView struct {
	BuyOrder string
	Amount   string
	Email    string
	Courses  []string
	Missing  []string
}

func render(t *template.Template, view any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// formatAmount renders an amount in the smallest unit with thousands
// separators, e.g. 1234567 -> "$1.234.567".
func formatAmount(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var out []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, d)
	}
	if neg {
		return "-$" + string(out)
	}
	return "$" + string(out)
}
