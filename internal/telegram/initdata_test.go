package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

const testBotToken = "12345:test-bot-token"

// signInitData 按 Telegram 的签名规则为测试数据生成 hash。
func signInitData(t *testing.T, botToken string, values url.Values) string {
	t.Helper()

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+values.Get(key))
	}

	secretMAC := hmac.New(sha256.New, []byte("WebAppData"))
	secretMAC.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secretMAC.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	signed := values
	signed.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return signed.Encode()
}

func freshInitData(t *testing.T, now time.Time) string {
	t.Helper()
	values := url.Values{}
	values.Set("user", `{"id":99,"username":"satoshi","first_name":"Sat","language_code":"en"}`)
	values.Set("auth_date", strconv.FormatInt(now.Unix(), 10))
	values.Set("query_id", "AAF9tK0aAAAAAH20rRrh")
	return signInitData(t, testBotToken, values)
}

func TestValidateAcceptsSignedData(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	v := NewValidator(testBotToken, 24*time.Hour)
	v.now = func() time.Time { return now }

	data, err := v.Validate(freshInitData(t, now.Add(-time.Minute)))
	if err != nil {
		t.Fatalf("合法签名校验失败: %v", err)
	}
	if data.User.ID != 99 || data.User.Username != "satoshi" {
		t.Fatalf("unexpected user: %+v", data.User)
	}
	if data.QueryID != "AAF9tK0aAAAAAH20rRrh" {
		t.Fatalf("unexpected query id %q", data.QueryID)
	}
}

func TestValidateRejectsTamperedPayload(t *testing.T) {
	now := time.Now()
	v := NewValidator(testBotToken, 0)

	raw := freshInitData(t, now)
	tampered := strings.Replace(raw, "%22id%22%3A99", "%22id%22%3A100", 1)
	if tampered == raw {
		t.Fatal("test setup: payload not modified")
	}
	if _, err := v.Validate(tampered); !errors.Is(err, ErrBadHash) {
		t.Fatalf("expected ErrBadHash, got %v", err)
	}
}

func TestValidateRejectsWrongBotToken(t *testing.T) {
	v := NewValidator("99999:other-bot", 0)
	if _, err := v.Validate(freshInitData(t, time.Now())); !errors.Is(err, ErrBadHash) {
		t.Fatalf("expected ErrBadHash, got %v", err)
	}
}

func TestValidateRejectsMissingHash(t *testing.T) {
	v := NewValidator(testBotToken, 0)
	if _, err := v.Validate("user=%7B%22id%22%3A1%7D"); !errors.Is(err, ErrMissingHash) {
		t.Fatalf("expected ErrMissingHash, got %v", err)
	}
}

func TestValidateRejectsStaleAuthDate(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	v := NewValidator(testBotToken, 24*time.Hour)
	v.now = func() time.Time { return now }

	stale := freshInitData(t, now.Add(-25*time.Hour))
	if _, err := v.Validate(stale); !errors.Is(err, ErrExpired) {
		t.Fatalf("过期数据应被拒绝, got %v", err)
	}
}

func TestValidateRequiresUserID(t *testing.T) {
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	raw := signInitData(t, testBotToken, values)

	v := NewValidator(testBotToken, 0)
	if _, err := v.Validate(raw); err == nil {
		t.Fatal("expected error for init data without user")
	}
}
