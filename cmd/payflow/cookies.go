package main

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/session"
)

// cookieTokens loads Set-Cookie lines saved from the wallet's sign-in
// response into a jar scoped to baseURL and reads the bearer token from it.
// Expired or foreign-domain cookies are dropped by the jar.
func cookieTokens(path, baseURL string) (session.TokenSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("payflow: base url: %w", err)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("payflow: open cookies: %w", err)
	}
	defer file.Close()

	var cookies []*http.Cookie
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if v, ok := cutPrefixFold(line, "Set-Cookie:"); ok {
			line = strings.TrimSpace(v)
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ck, err := http.ParseSetCookie(line)
		if err != nil {
			return nil, fmt.Errorf("payflow: parse cookie %q: %w", line, err)
		}
		cookies = append(cookies, ck)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("payflow: read cookies: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("payflow: cookie jar: %w", err)
	}
	jar.SetCookies(u, cookies)
	return session.FromCookieJar(jar, u), nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
