package skill

import "fmt"

// Built-in skill ids as published in the automation provider's marketplace.
const (
	JobSearchID      = "805c9a12-9d9d-4d64-8234-9d8b378cf6cf"
	HackerNewsID     = "962a620b-607b-4c08-a51f-0376f24c1938"
	WeatherID        = "911880ed-b5a9-408e-803e-db1279585bab"
	NewsSearchID     = "7ed94633-2162-4b78-a958-ba924b58c6e0"
	XPostID          = "eb6153e1-1e95-4e5b-88ac-5158c9207b9c"
	GoogleCalendarID = "20f63d34-afa9-4e18-b361-47edd270c3ca"
	YouTubeSearchID  = "e6cec7da-4d28-4fc2-91e5-0f7cf4602196"
	AmazonCartID     = "adbd36f2-a522-4f06-b458-946bd236ded2"
	GmailDraftID     = "27441e62-faaf-4c15-855a-f7bbb479bbf0"
)

type builtin struct {
	cfg  *Config
	opts HandlerOptions
}

// RegisterBuiltins registers the built-in skills in their fixed order.
func RegisterBuiltins(reg *Registry, runner Runner) error {
	for _, b := range builtins() {
		if err := reg.Register(b.cfg, NewAutomationHandler(b.cfg, runner, b.opts)); err != nil {
			return err
		}
	}
	return nil
}

// BuiltinConfigs returns fresh copies of the built-in skill configs.
func BuiltinConfigs() []*Config {
	all := builtins()
	out := make([]*Config, len(all))
	for i, b := range all {
		out[i] = b.cfg
	}
	return out
}

func builtins() []builtin {
	return []builtin{
		{
			cfg: &Config{
				ID:          JobSearchID,
				Name:        "Tech Job Search",
				Category:    CategoryDataRetrieval,
				Description: "Searches for tech jobs across multiple job boards",
				Schema: NewSchema(
					Field{Name: "query", Type: TypeString, Required: true, Description: "Search query with optional filters (@company:name, @location:city)"},
					Field{Name: "limit", Type: TypeInt, Default: 10, Min: intPtr(1), Max: intPtr(50), Description: "Max results to return"},
				),
				ExampleParams: map[string]any{"query": "python engineer @location:San Francisco", "limit": 10},
				PlannerHints: "Trigger when journal reflects career frustration, job dissatisfaction, " +
					"wanting a change, feeling stuck at work, considering new opportunities, " +
					"or mentions specific roles/companies they admire. Look for emotional cues like " +
					"'hate my job', 'need a change', 'thinking about leaving', 'wish I worked at'. " +
					"Extract relevant skills, industries, or locations mentioned. " +
					"Expand location abbreviations (SF→San Francisco, NYC→New York City, etc.).",
			},
			opts: HandlerOptions{Label: "💼 Job Search", Format: formatJobs},
		},
		{
			cfg: &Config{
				ID:          HackerNewsID,
				Name:        "HackerNews Top Posts",
				Category:    CategoryDataRetrieval,
				Description: "Fetches top posts from HackerNews",
				Schema: NewSchema(
					Field{Name: "limit", Type: TypeInt, Default: 10, Min: intPtr(1), Max: intPtr(30), Description: "Number of top posts to fetch"},
				),
				ExampleParams: map[string]any{"limit": 10},
				PlannerHints: "Trigger when journal mentions feeling out of the loop on tech, curiosity about " +
					"what developers are talking about, wanting to stay current, or reflects on " +
					"tech industry trends. Look for cues like 'wonder what's new in tech', " +
					"'feel behind on trends', 'curious what other devs think about'.",
			},
			opts: HandlerOptions{Label: "🔶 HackerNews", Format: formatHackerNews},
		},
		{
			cfg: &Config{
				ID:          WeatherID,
				Name:        "Weather Forecast",
				Category:    CategoryDataRetrieval,
				Description: "Fetches weather forecast for a location",
				Schema: NewSchema(
					Field{Name: "location", Type: TypeString, Required: true, Description: "City or location for weather forecast"},
					Field{Name: "days", Type: TypeInt, Default: 7, Min: intPtr(1), Max: intPtr(7), Description: "Number of days to forecast"},
					Field{Name: "units", Type: TypeString, Default: "e", Description: "Temperature units: 'e' for Fahrenheit, 'm' for Celsius"},
				),
				ExampleParams: map[string]any{"location": "San Francisco", "days": 3, "units": "e"},
				PlannerHints: "Trigger when journal mentions planning outdoor activities, upcoming trips, " +
					"wondering what to wear, hoping for good weather, or concerns about rain/storms. " +
					"Look for cues like 'planning a hike', 'going to the beach', 'hope it doesn't rain', " +
					"'packing for my trip to', 'weekend plans'. Extract the location from context. " +
					"Expand abbreviations (SF→San Francisco, NYC→New York City, LA→Los Angeles, etc.).",
			},
			opts: HandlerOptions{Label: "🌤️ Weather", Format: formatWeather},
		},
		{
			cfg: &Config{
				ID:          NewsSearchID,
				Name:        "News Search",
				Category:    CategoryDataRetrieval,
				Description: "Searches for news articles on any topic",
				Schema: NewSchema(
					Field{Name: "query", Type: TypeString, Required: true, Description: "Topic to search news for"},
					Field{Name: "max_results", Type: TypeInt, Default: 10, Min: intPtr(1), Max: intPtr(20), Description: "Max articles to return"},
				),
				ExampleParams: map[string]any{"query": "AI developments", "max_results": 5},
				PlannerHints: "Trigger when journal reflects curiosity about current events, wondering what's happening " +
					"with a topic/company/industry, feeling uninformed, or mentions something they heard about. " +
					"Look for cues like 'wonder what X is up to', 'heard something about', 'curious about', " +
					"'want to catch up on', 'what's happening with'. Extract the topic of interest.",
			},
			opts: HandlerOptions{Label: "📰 News", Format: formatNews},
		},
		{
			cfg: &Config{
				ID:          XPostID,
				Name:        "X.com Post Maker",
				Category:    CategoryAction,
				Description: "Posts content to X.com (Twitter) on your behalf",
				Schema: NewSchema(
					Field{Name: "content", Type: TypeString, Required: true, MaxLength: 280, Description: "The text content to post"},
				),
				ExampleParams: map[string]any{"content": "Just had a great insight about..."},
				PlannerHints: "Trigger when journal reflects a desire to share publicly, post more, take action, " +
					"be more visible, or contains a thought worth sharing. Look for cues like " +
					"'I should post this', 'want to share', 'hot take', 'need to put myself out there', " +
					"'should be more active online', 'this would make a good tweet'. " +
					"Extract the core insight or thought and craft it into a concise post. " +
					"IMPORTANT: This is an ACTION skill - always require user confirmation before posting.",
			},
			opts: HandlerOptions{Label: "𝕏 Post", Instruct: instructPost, Format: formatPost},
		},
		{
			cfg: &Config{
				ID:          GoogleCalendarID,
				Name:        "Google Calendar",
				Category:    CategoryAction,
				Description: "Creates calendar events with title, date/time, description, and location",
				Schema: NewSchema(
					Field{Name: "title", Type: TypeString, Required: true, Description: "Event title"},
					Field{Name: "date", Type: TypeString, Required: true, Description: "Event date in YYYY-MM-DD format"},
					Field{Name: "time", Type: TypeString, Required: true, Description: "Event start time in HH:MM format (24-hour)"},
					Field{Name: "description", Type: TypeString, Description: "Event description"},
					Field{Name: "location", Type: TypeString, Description: "Event location"},
					Field{Name: "duration_minutes", Type: TypeInt, Default: 60, Min: intPtr(15), Max: intPtr(480), Description: "Event duration in minutes"},
				),
				ExampleParams: map[string]any{
					"title":            "Team Meeting",
					"date":             "2025-01-15",
					"time":             "14:00",
					"description":      "Weekly sync",
					"location":         "Conference Room A",
					"duration_minutes": 60,
				},
				PlannerHints: "Trigger when journal mentions scheduling, planning meetings, setting reminders, " +
					"appointments, or time-based commitments. Look for cues like 'need to schedule', " +
					"'should set up a meeting', 'don't forget to', 'remind me to', 'at X o'clock', " +
					"'on Monday', 'next week'. Extract the event details from context. " +
					"IMPORTANT: This is an ACTION skill - always require user confirmation before creating.",
			},
			opts: HandlerOptions{Label: "📅 Calendar", Instruct: instructCalendar, Format: formatCalendar},
		},
		{
			cfg: &Config{
				ID:          YouTubeSearchID,
				Name:        "YouTube Search",
				Category:    CategoryDataRetrieval,
				Description: "Searches YouTube and extracts video titles, channels, and view counts",
				Schema: NewSchema(
					Field{Name: "query", Type: TypeString, Required: true, Description: "Search query for YouTube videos"},
					Field{Name: "max_results", Type: TypeInt, Default: 10, Min: intPtr(1), Max: intPtr(20), Description: "Max videos to return"},
				),
				ExampleParams: map[string]any{"query": "Python tutorials", "max_results": 10},
				PlannerHints: "Trigger when journal mentions wanting to learn something via video, tutorials, " +
					"how-to content, entertainment, or visual explanations. Look for cues like " +
					"'want to watch', 'need a tutorial on', 'looking for videos about', " +
					"'should learn how to', 'need to see how'. Extract the search topic from context.",
			},
			opts: HandlerOptions{Label: "▶️ YouTube", Format: formatYouTube},
		},
		{
			cfg: &Config{
				ID:          AmazonCartID,
				Name:        "Amazon Add to Cart",
				Category:    CategoryAction,
				Description: "Searches for products on Amazon and adds them to your cart",
				Schema: NewSchema(
					Field{Name: "product_query", Type: TypeString, Required: true, Description: "Product search query"},
					Field{Name: "quantity", Type: TypeInt, Default: 1, Min: intPtr(1), Max: intPtr(10), Description: "Quantity to add to cart"},
				),
				ExampleParams: map[string]any{"product_query": "wireless headphones", "quantity": 1},
				PlannerHints: "Trigger when journal mentions needing to buy something, shopping for items, " +
					"running low on supplies, or wanting to purchase. Look for cues like " +
					"'need to buy', 'should order', 'running out of', 'want to get', " +
					"'looking for a new', 'add to my cart'. Extract the product from context. " +
					"IMPORTANT: This is an ACTION skill - always require user confirmation before adding.",
			},
			opts: HandlerOptions{Label: "🛒 Amazon", Instruct: instructCart, Format: formatCart},
		},
		{
			cfg: &Config{
				ID:          GmailDraftID,
				Name:        "Save Gmail Draft",
				Category:    CategoryAction,
				Description: "Saves an email draft in Gmail with recipient, subject, and body",
				Schema: NewSchema(
					Field{Name: "to", Type: TypeString, Required: true, Description: "Recipient email address"},
					Field{Name: "subject", Type: TypeString, Required: true, Description: "Email subject"},
					Field{Name: "body", Type: TypeString, Required: true, Description: "Email body"},
				),
				ExampleParams: map[string]any{"to": "friend@example.com", "subject": "Quick update", "body": "Hey, just wanted to share..."},
				PlannerHints: "Trigger when journal mentions wanting to email someone, draft a message, " +
					"write to someone, reach out via email, or compose an email. Look for cues like " +
					"'should email', 'need to write to', 'send a message to', 'reach out to X about'. " +
					"Extract the recipient, subject, and body from context. " +
					"IMPORTANT: This is an ACTION skill - always require user confirmation before saving.",
			},
			opts: HandlerOptions{Label: "📧 Draft", Instruct: instructDraft, Format: formatDraft},
		},
	}
}

func instructPost(_ *Config, p Params) string {
	content := p.String("content")
	if content == "" {
		content = p.String("message")
	}
	return "Post a tweet saying: " + content
}

func instructCalendar(_ *Config, p Params) string {
	task := fmt.Sprintf("Create a calendar event titled \"%s\" on %s at %s for %d minutes",
		p.String("title"), p.String("date"), p.String("time"), p.Int("duration_minutes", 60))
	if d := p.String("description"); d != "" {
		task += " with description: " + d
	}
	if l := p.String("location"); l != "" {
		task += " at location: " + l
	}
	return task
}

func instructCart(_ *Config, p Params) string {
	return fmt.Sprintf("Search for \"%s\" on Amazon and add %d to the cart", p.String("product_query"), p.Int("quantity", 1))
}

func instructDraft(_ *Config, p Params) string {
	return fmt.Sprintf("Go to Gmail, click compose, fill in To: %s, Subject: %s, Body: %s, then close to save as draft. Do NOT send.",
		p.String("to"), p.String("subject"), p.String("body"))
}
