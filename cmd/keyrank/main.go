// Package main provides the keyrank CLI.
//
// keyrank fetches a page, derives keyword candidates from its title, meta
// keywords and body phrases, and reports where the page's domain ranks in
// search results for each of them.
//
// Usage:
//
//	keyrank analyze https://www.example.com/
//	keyrank history --domain example.com
//	keyrank serve --addr :8080
package main

func main() {
	Execute()
}
