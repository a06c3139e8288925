package replies

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

type rule struct {
	pattern *regexp.Regexp
	reply   string
	flags   Response
}

// Fallback is the deterministic local responder used when the service is
// slow, failing or silent.
type Fallback struct {
	business string
	services []string
	rules    []rule
}

// NewFallback builds the keyword rules for a business.
func NewFallback(business string, services []string) *Fallback {
	if strings.TrimSpace(business) == "" {
		business = "our team"
	}
	f := &Fallback{business: business, services: services}
	f.rules = []rule{
		{
			pattern: regexp.MustCompile(`(?i)\b(book|schedule|appointment|call|meet(ing)?|consult(ation)?)\b`),
			reply:   "I'd be happy to set up a call. Pick a date and time that works for you.",
			flags:   Response{ShowAppointmentForm: true, Action: ActionOpenForm},
		},
		{
			pattern: regexp.MustCompile(`(?i)\b(price|pricing|cost|quote|budget|rates?)\b`),
			reply:   "Pricing depends on the scope of your project. Would you like to schedule a quick consultation so we can give you an accurate quote?",
		},
		{
			pattern: regexp.MustCompile(`(?i)\b(contact|email|reach|phone)\b`),
			reply:   "Leave your details and someone from " + business + " will get back to you shortly.",
			flags:   Response{ShowContactForm: true},
		},
		{
			pattern: regexp.MustCompile(`(?i)\b(services?|offer|do you do|help with)\b`),
			reply:   f.servicesReply(),
		},
		{
			pattern: regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good (morning|afternoon|evening))\b`),
			reply:   fmt.Sprintf("Hello! Thanks for reaching out to %s. What are you working on?", business),
		},
	}
	return f
}

func (f *Fallback) servicesReply() string {
	if len(f.services) == 0 {
		return "We help businesses grow online. Tell me a little about your project."
	}
	return fmt.Sprintf("We offer %s. Which one are you interested in?", strings.Join(f.services, ", "))
}

// Reply never fails.
func (f *Fallback) Reply(ctx context.Context, req Request) (Response, error) {
	for _, r := range f.rules {
		if r.pattern.MatchString(req.Message) {
			out := r.flags
			out.Reply = r.reply
			out.Fallback = true
			return out, nil
		}
	}
	return Response{
		Reply:    "Thanks for your message! Would you like to schedule a free consultation with our team?",
		Fallback: true,
	}, nil
}
