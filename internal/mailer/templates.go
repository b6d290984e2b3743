package mailer

import (
	"html/template"
	"time"
)

// 送信者表示名
const (
	intakeSenderName  = "財務諮詢系統"
	accountSenderName = "財務顧問系統"
)

// 件名
const (
	subjectInquiryReceived    = "您的諮詢申請已收到"
	subjectClientConfirmed    = "預約確認通知"
	subjectConsultantNotified = "新預約通知"
	subjectPasswordReset      = "重設您的密碼"
)

// displayTimeLayout はメール本文に表示する日時の書式。
const displayTimeLayout = "2006/1/2 15:04"

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"when": func(t time.Time) string { return t.Format(displayTimeLayout) },
}).Parse(`
{{define "inquiry_received"}}<h1>感謝您的申請，{{.Name}}！</h1>
<p>我們已經收到您的財務諮詢申請。</p>
<p><strong>預約時間：</strong>{{when .RequestedTime}}</p>
<p>我們的專業顧問將盡快與您聯繫，確認諮詢時間。</p>
<p>如有任何問題，歡迎隨時與我們聯絡。</p>
<br>
<p>祝好，<br>財務諮詢團隊</p>{{end}}

{{define "client_confirmed"}}<h1>預約確認</h1>
<p>親愛的 {{.ClientName}}，</p>
<p>您的財務諮詢預約已確認！</p>
<h2>會議資訊</h2>
<ul>
<li><strong>時間：</strong>{{when .StartTime}}</li>
<li><strong>顧問：</strong>{{.ConsultantName}}</li>
<li><strong>會議連結：</strong><a href="{{.MeetingLink}}">{{.MeetingLink}}</a></li>
</ul>
<h2>登入資訊</h2>
<p>我們已為您建立帳號，請使用以下資訊登入：</p>
<ul>
<li><strong>Email：</strong>{{.ClientEmail}}</li>
<li><strong>臨時密碼：</strong>{{.TemporaryPassword}}</li>
</ul>
<p>請於首次登入後修改密碼。</p>
<p>期待與您見面！</p>{{end}}

{{define "consultant_notified"}}<h1>新預約通知</h1>
<p>您已成功接受一個新的客戶預約。</p>
<h2>客戶資訊</h2>
<ul>
<li><strong>姓名：</strong>{{.ClientName}}</li>
<li><strong>Email：</strong>{{.ClientEmail}}</li>
</ul>
<h2>會議資訊</h2>
<ul>
<li><strong>時間：</strong>{{when .StartTime}}</li>
<li><strong>會議連結：</strong><a href="{{.MeetingLink}}">{{.MeetingLink}}</a></li>
</ul>{{end}}

{{define "password_reset"}}<h1>重設密碼</h1>
<p>親愛的 {{.Name}}，</p>
<p>我們收到了重設您帳號密碼的請求。請點擊以下連結設定新密碼：</p>
<p><a href="{{.ResetURL}}">{{.ResetURL}}</a></p>
<p>此連結將於一小時後失效。如果您沒有提出此請求，請忽略這封郵件。</p>
<br>
<p>祝好，<br>財務顧問團隊</p>{{end}}
`))
