// Package bypass recognizes bot-protection challenges and block pages so a
// challenged response is never mistaken for real content.
package bypass

import (
	"bytes"
	"net/http"
	"slices"
	"strings"
)

// Response is the part of an HTTP response inspected by detectors.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	// FinalURL is the URL after redirects, when known.
	FinalURL string
}

// Detector reports whether res is a challenge or block page and, if so,
// which vendor served it.
type Detector func(res *Response) (detected bool, source string)

// Signature describes one vendor's block page. A response matches when its
// status is listed and any server, header or body marker is present.
type Signature struct {
	Source   string
	Statuses []int
	// Servers are lowercase substrings of the Server header.
	Servers []string
	// Headers are header names whose presence alone is conclusive.
	Headers []string
	// Bodies are all-of marker groups: every marker in one group must appear.
	Bodies [][]string
}

// Detector turns the signature into a Detector.
func (s Signature) Detector() Detector {
	return func(res *Response) (bool, string) {
		if s.matches(res) {
			return true, s.Source
		}
		return false, ""
	}
}

func (s Signature) matches(res *Response) bool {
	if !slices.Contains(s.Statuses, res.StatusCode) {
		return false
	}
	server := strings.ToLower(res.Headers.Get("Server"))
	for _, sv := range s.Servers {
		if strings.Contains(server, sv) {
			return true
		}
	}
	for _, h := range s.Headers {
		if res.Headers.Get(h) != "" {
			return true
		}
	}
	for _, group := range s.Bodies {
		if containsAll(res.Body, group) {
			return true
		}
	}
	return false
}

func containsAll(body []byte, markers []string) bool {
	if len(markers) == 0 {
		return false
	}
	for _, m := range markers {
		if !bytes.Contains(body, []byte(m)) {
			return false
		}
	}
	return true
}

// Signatures are the known vendor block pages, in detection order.
var Signatures = []Signature{
	{
		Source:   "Cloudflare",
		Statuses: []int{http.StatusForbidden, http.StatusServiceUnavailable},
		Servers:  []string{"cloudflare"},
		Bodies: [][]string{
			{"cf-browser-verification"},
			{"cloudflare-nginx"},
			{"cf-turnstile"},
			{"Attention Required! | Cloudflare"},
		},
	},
	{
		Source:   "Akamai",
		Statuses: []int{http.StatusForbidden},
		Servers:  []string{"akamai"},
		Bodies:   [][]string{{"Reference #", "Access Denied"}},
	},
	{
		Source:   "DataDome",
		Statuses: []int{http.StatusForbidden},
		Servers:  []string{"datadome"},
		Headers:  []string{"X-DataDome", "X-DataDome-Response"},
		Bodies:   [][]string{{"geo.captcha-delivery.com"}, {"datadome"}},
	},
	{
		Source:   "PerimeterX",
		Statuses: []int{http.StatusForbidden},
		Headers:  []string{"X-Px-Captcha"},
		Bodies:   [][]string{{"client.perimeterx.net"}, {"px-captcha"}, {"_pxBlock"}},
	},
	{
		Source:   "Google",
		Statuses: []int{http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable},
		Bodies: [][]string{
			{"unusual traffic from your computer network"},
			{"Our systems have detected unusual traffic"},
			{"/sorry/index"},
		},
	},
}

// DefaultDetectors returns a detector per entry in Signatures plus the
// Google /sorry/ redirect check, which matches on the final URL alone.
func DefaultDetectors() []Detector {
	detectors := []Detector{detectGoogleSorry}
	for _, s := range Signatures {
		detectors = append(detectors, s.Detector())
	}
	return detectors
}

// Analyze runs the response through the detectors and returns the source of
// the first one that triggered.
func Analyze(res *Response, detectors []Detector) (bool, string) {
	if res == nil {
		return false, ""
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return true, source
		}
	}
	return false, ""
}

// detectGoogleSorry catches automated queries redirected to the Google
// "unusual traffic" interstitial, which is served with a 200 after the hop.
func detectGoogleSorry(res *Response) (bool, string) {
	if strings.Contains(res.FinalURL, "google.") && strings.Contains(res.FinalURL, "/sorry/") {
		return true, "Google"
	}
	return false, ""
}
