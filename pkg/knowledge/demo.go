package knowledge

import "strings"

var demoKnowledge = map[string][]string{
	"microsoft.com": {
		"Microsoft was founded in 1975 by Bill Gates and Paul Allen.",
		"Microsoft is headquartered in Redmond, Washington.",
		"Microsoft's products include Windows, Microsoft 365, Azure and Xbox.",
	},
	"apple.com": {
		"Apple was founded in 1976 by Steve Jobs, Steve Wozniak and Ronald Wayne.",
		"Apple is headquartered in Cupertino, California.",
		"Apple designs the iPhone, iPad, Mac and Apple Watch.",
	},
	"google.com": {
		"Google was founded in 1998 by Larry Page and Sergey Brin.",
		"Google is a subsidiary of Alphabet Inc. and is headquartered in Mountain View, California.",
	},
	"amazon.com": {
		"Amazon was founded in 1994 by Jeff Bezos.",
		"Amazon is headquartered in Seattle, Washington.",
		"Amazon Web Services is Amazon's cloud computing division.",
	},
}

// DemoKnowledge returns a copy of the demo facts for domain, or an empty
// slice for domains it doesn't know.
func DemoKnowledge(domain string) []string {
	items := demoKnowledge[strings.ToLower(domain)]
	return append([]string{}, items...)
}
