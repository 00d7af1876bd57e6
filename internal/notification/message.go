package notification

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
)

// Message is a rendered email ready for a transport.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

var errNoRecipient = errors.New("notification has no recipient")

var statusMessages = map[domain.BorrowStatus]string{
	domain.BorrowStatusPending:  "sedang menunggu persetujuan admin",
	domain.BorrowStatusApproved: "telah disetujui",
	domain.BorrowStatusRejected: "telah ditolak",
	domain.BorrowStatusBorrowed: "telah diserahkan kepada Anda",
	domain.BorrowStatusReturned: "telah dikembalikan",
	domain.BorrowStatusOverdue:  "telah melewati batas waktu",
}

var (
	weekdays = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}
	months   = [...]string{"Januari", "Februari", "Maret", "April", "Mei", "Juni", "Juli", "Agustus", "September", "Oktober", "November", "Desember"}
)

// FormatDate renders t in WIB the way the school writes dates, e.g.
// "Rabu, 10 Januari 2024 09.00 WIB".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(clock.WIB)
	return fmt.Sprintf("%s, %d %s %d %02d.%02d WIB", weekdays[t.Weekday()], t.Day(), months[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"date": FormatDate,
}).Parse(`
{{define "items"}}<h3>Daftar Barang:</h3>
<ul>
{{- range .Borrow.Items}}
<li>{{.Item.Name}} ({{.Item.Code}}){{if $.WithCondition}} - Kondisi: {{.Condition}}{{if .Notes}} - Catatan: {{.Notes}}{{end}}{{end}}</li>
{{- end}}
</ul>{{end}}

{{define "new_borrow"}}<h2>Permintaan Peminjaman Baru</h2>
<p><strong>Peminjam:</strong> {{.Borrow.User.Name}}{{if .Borrow.User.Class}} ({{.Borrow.User.Class}}){{end}}</p>
<p><strong>Email:</strong> {{.Borrow.User.Email}}</p>
<p><strong>Kode:</strong> {{.Borrow.Record.Code}}</p>
<p><strong>Tujuan:</strong> {{.Borrow.Record.Purpose}}</p>
<p><strong>Tanggal Peminjaman:</strong> {{date .Borrow.Record.BorrowDate}}</p>
<p><strong>Tanggal Pengembalian:</strong> {{date .Borrow.Record.DueDate}}</p>
{{template "items" .}}
<p>Silakan cek sistem untuk menyetujui atau menolak permintaan ini.</p>{{end}}

{{define "status_changed"}}<h2>Update Status Peminjaman</h2>
<p>Peminjaman Anda ({{.Borrow.Record.Code}}) {{.StatusMessage}}.</p>
<p><strong>Tujuan:</strong> {{.Borrow.Record.Purpose}}</p>
<p><strong>Tanggal Peminjaman:</strong> {{date .Borrow.Record.BorrowDate}}</p>
<p><strong>Tanggal Pengembalian:</strong> {{date .Borrow.Record.DueDate}}</p>
{{template "items" .}}
{{- if eq .Status "approved"}}
<p>Silakan ambil barang di Laboratorium RPL sesuai jadwal yang telah ditentukan.</p>
{{- end}}
{{- if eq .Status "returned"}}
<p><strong>Kondisi Pengembalian:</strong> {{.Borrow.Record.ReturnCondition}}{{if .Borrow.Record.ReturnNotes}} - {{.Borrow.Record.ReturnNotes}}{{end}}</p>
{{- end}}{{end}}

{{define "due_reminder"}}<h2>Pengingat Pengembalian Barang</h2>
<p>Halo {{.Borrow.User.Name}},</p>
<p>Ini adalah pengingat bahwa peminjaman Anda berakhir hari ini.</p>
<p><strong>Tanggal Pengembalian:</strong> {{date .Borrow.Record.DueDate}}</p>
{{template "items" .}}
<p>Mohon mengembalikan barang tepat waktu ke Laboratorium RPL.</p>{{end}}

{{define "overdue"}}<h2>Pemberitahuan Keterlambatan</h2>
<p>Halo {{.Borrow.User.Name}},</p>
<p>Peminjaman Anda telah melewati batas waktu pengembalian.</p>
<p><strong>Tanggal Seharusnya:</strong> {{date .Borrow.Record.DueDate}}</p>
{{template "items" .}}
<p>Mohon segera mengembalikan barang ke Laboratorium RPL untuk menghindari sanksi.</p>{{end}}
`))

type templateData struct {
	Borrow        domain.BorrowDetails
	Status        domain.BorrowStatus
	StatusMessage string
	WithCondition bool
}

// Compose renders intent into a Message. New borrow requests go to the admin
// mailbox; everything else goes to the borrower.
func Compose(intent domain.NotificationIntent, adminEmail string) (*Message, error) {
	b := intent.Borrow
	data := templateData{
		Borrow:        b,
		Status:        b.Record.Status,
		StatusMessage: statusMessages[b.Record.Status],
	}

	msg := &Message{To: b.User.Email, ToName: b.User.Name}
	switch intent.Kind {
	case domain.NotificationNewBorrow:
		msg.To, msg.ToName = adminEmail, "Admin Lab"
		msg.Subject = "Permintaan Peminjaman Baru - " + b.User.Name
		data.WithCondition = true
	case domain.NotificationStatusChanged:
		msg.Subject = "Status Peminjaman - " + data.StatusMessage
	case domain.NotificationDueReminder:
		msg.Subject = "Pengingat Pengembalian Barang"
	case domain.NotificationOverdue:
		msg.Subject = "Pemberitahuan Keterlambatan Pengembalian"
	default:
		return nil, fmt.Errorf("unknown notification kind %q", intent.Kind)
	}
	if msg.To == "" {
		return nil, errNoRecipient
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(intent.Kind), data); err != nil {
		return nil, fmt.Errorf("failed to render %s mail: %w", intent.Kind, err)
	}
	msg.HTML = strings.TrimSpace(buf.String())
	msg.Text = fmt.Sprintf("%s\n\nKode: %s\nBarang: %s\nTanggal Pengembalian: %s",
		msg.Subject, b.Record.Code, strings.Join(b.ItemNames(), ", "), FormatDate(b.Record.DueDate))
	return msg, nil
}
