package ranking

import (
	"strings"
	"time"

	"hybridhouse/internal/models"
)

// DisplayName picks the public name for a leaderboard row.
func DisplayName(id *models.Identity, profile map[string]any, artifactID string) string {
	first, last := profileString(profile, "first_name"), profileString(profile, "last_name")
	var email string
	if id != nil {
		if id.Name != nil {
			parts := strings.Fields(*id.Name)
			if len(parts) > 0 && first == "" {
				first = parts[0]
			}
			if len(parts) > 1 && last == "" {
				last = strings.Join(parts[1:], " ")
			}
		}
		if id.Email != nil {
			email = *id.Email
		}
	}

	var name string
	switch {
	case id != nil && id.DisplayName != nil && strings.TrimSpace(*id.DisplayName) != "":
		name = strings.TrimSpace(*id.DisplayName)
	case profileString(profile, "display_name") != "":
		name = profileString(profile, "display_name")
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		name = first
	case email != "":
		if i := strings.Index(email, "@"); i > 0 {
			return email[:i]
		}
		return email
	default:
		short := artifactID
		if len(short) > 8 {
			short = short[:8]
		}
		return "User " + short
	}

	if !strings.Contains(name, " ") && last != "" && !strings.EqualFold(name, last) {
		name += " " + last
	}
	return name
}

func profileString(profile map[string]any, key string) string {
	s, _ := profile[key].(string)
	return strings.TrimSpace(s)
}

// Age returns whole years between an ISO date of birth and now.
func Age(dob string, now time.Time) *int {
	if len(dob) > 10 {
		dob = dob[:10]
	}
	born, err := time.Parse("2006-01-02", dob)
	if err != nil {
		return nil
	}
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	if years < 0 {
		return nil
	}
	return &years
}

var countryCodes = map[string]string{
	"united states": "US", "united states of america": "US", "usa": "US", "america": "US",
	"united kingdom": "GB", "uk": "GB", "great britain": "GB", "england": "GB", "scotland": "GB", "wales": "GB",
	"canada": "CA", "mexico": "MX", "brazil": "BR", "argentina": "AR", "chile": "CL", "colombia": "CO",
	"ireland": "IE", "france": "FR", "germany": "DE", "spain": "ES", "portugal": "PT", "italy": "IT",
	"netherlands": "NL", "belgium": "BE", "switzerland": "CH", "austria": "AT", "sweden": "SE",
	"norway": "NO", "denmark": "DK", "finland": "FI", "poland": "PL", "greece": "GR",
	"australia": "AU", "new zealand": "NZ", "japan": "JP", "south korea": "KR", "korea": "KR",
	"china": "CN", "india": "IN", "singapore": "SG", "philippines": "PH", "south africa": "ZA",
	"kenya": "KE", "nigeria": "NG", "israel": "IL", "united arab emirates": "AE", "uae": "AE",
}

func countryCode(country string) string {
	c := strings.TrimSpace(country)
	if len(c) == 2 {
		up := strings.ToUpper(c)
		if up == "UK" {
			return "GB"
		}
		if up[0] >= 'A' && up[0] <= 'Z' && up[1] >= 'A' && up[1] <= 'Z' {
			return up
		}
		return ""
	}
	return countryCodes[strings.ToLower(c)]
}

// CountryFlag renders an ISO country (code or common name) as a flag emoji.
func CountryFlag(country string) string {
	code := countryCode(country)
	if code == "" {
		return ""
	}
	const regionalA = 0x1F1E6
	return string([]rune{regionalA + rune(code[0]-'A'), regionalA + rune(code[1]-'A')})
}
