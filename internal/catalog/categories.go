// internal/catalog/categories.go
package catalog

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// SlugFromURL returns the last path segment of a category URL.
func SlugFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}

	raw = strings.TrimRight(raw, "/")
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		raw = raw[i+1:]
	}
	return raw
}

// LoadCategoryFile reads one category URL per line. Lines that are not
// https URLs are ignored. Slugs are returned in file order without duplicates.
func LoadCategoryFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open category file: %w", err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	var slugs []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "https://") {
			continue
		}
		slug := SlugFromURL(line)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		slugs = append(slugs, slug)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read category file: %w", err)
	}

	return slugs, nil
}

// DiscoverCategories visits the storefront and collects links that look like
// top-level category pages on the same host.
func DiscoverCategories(ctx context.Context, storefrontURL, selector, userAgent string) ([]string, error) {
	root, err := url.Parse(storefrontURL)
	if err != nil {
		return nil, fmt.Errorf("parse storefront url: %w", err)
	}
	if selector == "" {
		selector = "a[href]"
	}

	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.AllowedDomains(root.Hostname()),
	}
	if userAgent != "" {
		opts = append(opts, colly.UserAgent(userAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(30 * time.Second)

	seen := make(map[string]bool)
	var slugs []string

	c.OnHTML(selector, func(e *colly.HTMLElement) {
		link, err := url.Parse(e.Request.AbsoluteURL(e.Attr("href")))
		if err != nil || link.Hostname() != root.Hostname() {
			return
		}

		path := strings.Trim(link.Path, "/")
		if path == "" || strings.Contains(path, "/") || !slugPattern.MatchString(path) {
			return
		}
		if !seen[path] {
			seen[path] = true
			slugs = append(slugs, path)
		}
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		logrus.WithFields(logrus.Fields{
			"url":    r.Request.URL.String(),
			"status": r.StatusCode,
		}).WithError(err).Warn("Category discovery request failed")
		visitErr = err
	})

	if err := c.Visit(storefrontURL); err != nil {
		return nil, fmt.Errorf("visit storefront: %w", err)
	}
	c.Wait()

	if visitErr != nil && len(slugs) == 0 {
		return nil, fmt.Errorf("discover categories: %w", visitErr)
	}
	return slugs, nil
}
