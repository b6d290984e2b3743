package mailer

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "見出しと段落が行に分かれる",
			in:   "<h1>預約確認</h1><p>親愛的 Amy，</p>",
			want: "預約確認\n親愛的 Amy，",
		},
		{
			name: "brで改行される",
			in:   "<p>祝好，<br>財務諮詢團隊</p>",
			want: "祝好，\n財務諮詢團隊",
		},
		{
			name: "リストとリンク",
			in:   `<ul><li><strong>會議連結：</strong><a href="https://meet.google.com/x">加入</a></li></ul>`,
			want: "- 會議連結：加入 (https://meet.google.com/x)",
		},
		{
			name: "エンティティが復元される",
			in:   "<p>Tom &amp; Jerry</p>",
			want: "Tom & Jerry",
		},
		{
			name: "空入力",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
