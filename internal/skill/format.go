package skill

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	linkPattern     = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)
	calendarPattern = regexp.MustCompile(`https://calendar\.google\.com/[^\s"'<>)\]]+`)
)

// ExtractLinks returns every distinct http(s) URL in s, in order of
// appearance.
func ExtractLinks(s string) []Link {
	var links []Link
	seen := make(map[string]bool)
	for _, u := range linkPattern.FindAllString(s, -1) {
		u = strings.TrimRight(u, ".,;")
		if seen[u] {
			continue
		}
		seen[u] = true
		links = append(links, Link{Label: "Open link", URL: u})
	}
	return links
}

// text accepts any JSON scalar and keeps its textual form.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = text(s)
		return nil
	}
	*t = text(strings.TrimSpace(string(b)))
	return nil
}

func (t text) or(def string) string {
	if t == "" {
		return def
	}
	return string(t)
}

// envelopeText holds the copy a formatter uses on its shared failure paths.
type envelopeText struct {
	failTitle  string
	failPrefix string
	emptyTitle string
	emptyMsg   string
	// bareError shows only the provider message, without its code.
	bareError bool
}

// decode handles failed results and unusable envelopes. When handled is
// true, f is the notification to show.
func (t envelopeText) decode(r Result, v any) (f Formatted, handled bool, err error) {
	if !r.Completed() {
		return pending(t.failTitle, t.failPrefix+r.Error), true, nil
	}
	err = Unwrap(r.Output, v)
	var pe *ProviderError
	switch {
	case err == nil:
		return Formatted{}, false, nil
	case errors.Is(err, errNoData):
		return pending(t.emptyTitle, t.emptyMsg), true, nil
	case errors.As(err, &pe):
		msg := pe.Error()
		if t.bareError {
			msg = pe.Message
		}
		return pending(t.failTitle, msg), true, nil
	}
	return Formatted{}, true, err
}

func pending(title, message string) Formatted {
	return Formatted{Title: title, Message: message, InboxStatus: InboxPending}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func link(links []Link, label string, u text) []Link {
	if u == "" {
		return links
	}
	return append(links, Link{Label: label, URL: string(u)})
}

func formatJobs(_ *Config, r Result) (Formatted, error) {
	var data struct {
		Jobs []struct {
			Title    text `json:"title"`
			Company  text `json:"company"`
			Location text `json:"location"`
			Salary   text `json:"salary"`
			URL      text `json:"url"`
		} `json:"jobs"`
		Count *int `json:"count"`
	}
	t := envelopeText{
		failTitle:  "💼 Job Search Failed",
		failPrefix: "Unable to complete job search: ",
		emptyTitle: "💼 Job Search - No Results",
		emptyMsg:   "The search completed but returned no data.",
	}
	if f, handled, err := t.decode(r, &data); handled {
		return f, err
	}
	if len(data.Jobs) == 0 {
		return pending("💼 No Jobs Found", "Try adjusting your search criteria or checking back later."), nil
	}
	total := len(data.Jobs)
	if data.Count != nil {
		total = *data.Count
	}

	var lines []string
	var links []Link
	for i, j := range data.Jobs[:min(5, len(data.Jobs))] {
		lines = append(lines,
			fmt.Sprintf("%d. %s at %s", i+1, j.Title.or("Unknown Position"), j.Company.or("Unknown Company")),
			"   📍 "+j.Location.or("Location not specified"),
			"   💰 "+j.Salary.or("Salary not listed"),
			"")
		links = link(links, j.Title.or("Job posting"), j.URL)
	}
	msg := strings.Join(lines, "\n")
	if total > 5 {
		msg += fmt.Sprintf("\n... and %d more jobs", total-5)
	}
	return Formatted{
		Title:       "💼 Found " + plural(total, "job"),
		Message:     msg,
		Action:      "Browse Results",
		InboxStatus: InboxNeedsConfirmation,
		Links:       links,
	}, nil
}

func formatHackerNews(_ *Config, r Result) (Formatted, error) {
	var data struct {
		Posts []struct {
			Title    text `json:"title"`
			Score    text `json:"score"`
			Comments text `json:"comments_count"`
			URL      text `json:"url"`
		} `json:"posts"`
	}
	t := envelopeText{
		failTitle:  "🔶 HackerNews Fetch Failed",
		failPrefix: "Unable to fetch posts: ",
		emptyTitle: "🔶 HackerNews - No Results",
		emptyMsg:   "The fetch completed but returned no data.",
	}
	if f, handled, err := t.decode(r, &data); handled {
		return f, err
	}
	if len(data.Posts) == 0 {
		return pending("🔶 No Posts Found", "Unable to fetch HackerNews posts at this time."), nil
	}

	top := data.Posts[:min(8, len(data.Posts))]
	var lines []string
	var links []Link
	for i, p := range top {
		lines = append(lines,
			fmt.Sprintf("%d. %s", i+1, p.Title.or("Untitled")),
			fmt.Sprintf("   ⬆️  %s points | 💬 %s comments", p.Score.or("0"), p.Comments.or("0")),
			"")
		links = link(links, p.Title.or("Post"), p.URL)
	}
	return Formatted{
		Title:       fmt.Sprintf("🔶 Top %d HackerNews Posts", len(top)),
		Message:     strings.Join(lines, "\n"),
		Action:      "Read on HN",
		InboxStatus: InboxNeedsConfirmation,
		Links:       links,
	}, nil
}

func formatWeather(_ *Config, r Result) (Formatted, error) {
	var data struct {
		Location text `json:"location"`
		Current  *struct {
			Temperature text `json:"temperature"`
			Conditions  text `json:"conditions"`
		} `json:"current"`
		Forecast []struct {
			Day       text `json:"day"`
			Date      text `json:"date"`
			High      text `json:"high"`
			Low       text `json:"low"`
			Narrative text `json:"narrative"`
		} `json:"forecast"`
	}
	t := envelopeText{
		failTitle:  "🌤️ Weather Forecast Failed",
		failPrefix: "Unable to fetch weather: ",
		emptyTitle: "🌤️ Weather - No Results",
		emptyMsg:   "The forecast fetch completed but returned no data.",
	}
	if f, handled, err := t.decode(r, &data); handled {
		return f, err
	}
	location := data.Location.or("Unknown location")
	if len(data.Forecast) == 0 {
		return pending("🌤️ No Forecast Available", fmt.Sprintf("Unable to fetch weather for %s.", location)), nil
	}

	lines := []string{"📍 " + location, ""}
	if c := data.Current; c != nil {
		lines = append(lines, fmt.Sprintf("Now: %s° - %s", c.Temperature.or("?"), c.Conditions.or("Unknown")), "")
	}
	for _, d := range data.Forecast[:min(5, len(data.Forecast))] {
		lines = append(lines,
			fmt.Sprintf("%s (%s)", d.Day.or("Unknown"), d.Date),
			fmt.Sprintf("  High: %s° | Low: %s°", d.High.or("?"), d.Low.or("?")))
		if d.Narrative != "" {
			lines = append(lines, "  "+string(d.Narrative))
		}
		lines = append(lines, "")
	}
	return Formatted{
		Title:       "🌤️ Weather for " + location,
		Message:     strings.Join(lines, "\n"),
		Action:      "View Full Forecast",
		InboxStatus: InboxNeedsConfirmation,
	}, nil
}

func formatNews(_ *Config, r Result) (Formatted, error) {
	var data struct {
		Articles []struct {
			Title   text `json:"title"`
			Source  text `json:"source"`
			Snippet text `json:"snippet"`
			URL     text `json:"url"`
		} `json:"articles"`
	}
	t := envelopeText{
		failTitle:  "📰 News Search Failed",
		failPrefix: "Unable to search news: ",
		emptyTitle: "📰 News - No Results",
		emptyMsg:   "The search completed but returned no data.",
	}
	if f, handled, err := t.decode(r, &data); handled {
		return f, err
	}
	if len(data.Articles) == 0 {
		return pending("📰 No Articles Found", "No news articles found. Try a different search."), nil
	}

	var lines []string
	var links []Link
	for i, a := range data.Articles[:min(6, len(data.Articles))] {
		lines = append(lines,
			fmt.Sprintf("%d. %s", i+1, a.Title.or("Untitled Article")),
			"   📌 "+a.Source.or("Unknown Source"))
		if a.Snippet != "" {
			lines = append(lines, "   "+clip(string(a.Snippet), 100))
		}
		lines = append(lines, "")
		links = link(links, a.Title.or("Article"), a.URL)
	}
	return Formatted{
		Title:       "📰 Found " + plural(len(data.Articles), "article"),
		Message:     strings.Join(lines, "\n"),
		Action:      "Read Articles",
		InboxStatus: InboxNeedsConfirmation,
		Links:       links,
	}, nil
}

func formatPost(_ *Config, r Result) (Formatted, error) {
	var data struct {
		URL     text `json:"url"`
		Content text `json:"content"`
	}
	t := envelopeText{
		failTitle:  "𝕏 Post Failed",
		failPrefix: "Unable to post: ",
		emptyTitle: "𝕏 Post - Unknown Status",
		emptyMsg:   "The post may have been sent but we couldn't confirm.",
		bareError:  true,
	}
	if f, handled, err := t.decode(r, &data); handled {
		return f, err
	}
	msg := fmt.Sprintf("Posted: \"%s\"", clip(data.Content.or("Your post"), 100))
	if data.URL != "" {
		msg += "\n\n🔗 " + string(data.URL)
	}
	return Formatted{
		Title:       "𝕏 Posted Successfully",
		Message:     msg,
		Action:      "View Post",
		InboxStatus: InboxCompleted,
		Links:       link(nil, "View Post", data.URL),
	}, nil
}

func formatCalendar(_ *Config, r Result) (Formatted, error) {
	var data struct {
		Title  text `json:"title"`
		Date   text `json:"date"`
		Time   text `json:"time"`
		URL    text `json:"url"`
		Output text `json:"output"`
	}
	t := envelopeText{
		failTitle:  "📅 Calendar Event Failed",
		failPrefix: "Unable to create event: ",
		emptyTitle: "📅 Calendar Event - Unknown Status",
		emptyMsg:   "The event may have been created but we couldn't confirm.",
		bareError:  true,
	}
	if f, handled, err := t.decode(r, &data); handled {
		return f, err
	}

	out := string(data.Output)
	if strings.Contains(out, "action=TEMPLATE") || strings.Contains(out, "calendar/render") {
		msg := "Event details ready - click to add to your calendar"
		var links []Link
		if u := calendarPattern.FindString(out); u != "" {
			msg += "\n\n🔗 " + u
			links = []Link{{Label: "Add to Calendar", URL: u}}
		}
		return Formatted{
			Title:       "📅 Calendar Event Ready",
			Message:     msg,
			Action:      "Add to Calendar",
			InboxStatus: InboxNeedsConfirmation,
			Links:       links,
		}, nil
	}

	msg := fmt.Sprintf("Created: \"%s\"", data.Title.or("Your event"))
	if data.Date != "" && data.Time != "" {
		msg += fmt.Sprintf("\n📆 %s at %s", data.Date, data.Time)
	}
	if data.URL != "" {
		msg += "\n\n🔗 " + string(data.URL)
	}
	return Formatted{
		Title:       "📅 Event Created Successfully",
		Message:     msg,
		Action:      "View Calendar",
		InboxStatus: InboxCompleted,
		Links:       link(nil, "View Calendar", data.URL),
	}, nil
}

type video struct {
	Title     text `json:"title"`
	Channel   text `json:"channel"`
	ViewCount text `json:"view_count"`
	Views     text `json:"views"`
	URL       text `json:"url"`
}

func formatYouTube(_ *Config, r Result) (Formatted, error) {
	var data struct {
		Results []video `json:"results"`
		Videos  []video `json:"videos"`
	}
	t := envelopeText{
		failTitle:  "▶️ YouTube Search Failed",
		failPrefix: "Unable to search: ",
		emptyTitle: "▶️ YouTube - No Results",
		emptyMsg:   "The search completed but returned no data.",
	}
	if f, handled, err := t.decode(r, &data); handled {
		return f, err
	}
	videos := data.Results
	if len(videos) == 0 {
		videos = data.Videos
	}
	if len(videos) == 0 {
		return pending("▶️ No Videos Found", "No YouTube videos found. Try a different search."), nil
	}

	var lines []string
	var links []Link
	for i, v := range videos[:min(6, len(videos))] {
		views := v.ViewCount.or(v.Views.or("Unknown views"))
		lines = append(lines,
			fmt.Sprintf("%d. %s", i+1, v.Title.or("Untitled Video")),
			"   📺 "+v.Channel.or("Unknown Channel"),
			"   👁️  "+views,
			"")
		links = link(links, v.Title.or("Video"), v.URL)
	}
	return Formatted{
		Title:       "▶️ Found " + plural(len(videos), "video"),
		Message:     strings.Join(lines, "\n"),
		Action:      "Watch Videos",
		InboxStatus: InboxNeedsConfirmation,
		Links:       links,
	}, nil
}

func formatCart(_ *Config, r Result) (Formatted, error) {
	var data struct {
		ProductName text `json:"product_name"`
		Price       text `json:"price"`
		Quantity    *int `json:"quantity"`
		CartURL     text `json:"cart_url"`
	}
	t := envelopeText{
		failTitle:  "🛒 Amazon Cart Failed",
		failPrefix: "Unable to add to cart: ",
		emptyTitle: "🛒 Amazon Cart - Unknown Status",
		emptyMsg:   "The item may have been added but we couldn't confirm.",
		bareError:  true,
	}
	if f, handled, err := t.decode(r, &data); handled {
		return f, err
	}
	msg := fmt.Sprintf("Added: \"%s\"", data.ProductName.or("Your item"))
	if data.Quantity != nil && *data.Quantity > 1 {
		msg += fmt.Sprintf(" (x%d)", *data.Quantity)
	}
	if data.Price != "" {
		msg += "\n💰 " + string(data.Price)
	}
	if data.CartURL != "" {
		msg += "\n\n🔗 " + string(data.CartURL)
	}
	return Formatted{
		Title:       "🛒 Added to Amazon Cart",
		Message:     msg,
		Action:      "View Cart",
		InboxStatus: InboxCompleted,
		Links:       link(nil, "View Cart", data.CartURL),
	}, nil
}

func formatDraft(_ *Config, r Result) (Formatted, error) {
	if !r.Completed() {
		return pending("📧 Draft Failed", "Could not save draft: "+r.Error), nil
	}
	return Formatted{
		Title:       "📧 Draft Saved",
		Message:     "Your email draft was saved to Gmail.",
		Action:      "View Drafts",
		InboxStatus: InboxCompleted,
	}, nil
}
