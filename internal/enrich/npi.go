package enrich

// npiPrefix is the health-industry issuer prefix the NPI check digit is
// computed over.
const npiPrefix = "80840"

// ValidNPI reports whether s is a ten-digit NPI with a correct Luhn check
// digit.
func ValidNPI(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return luhn(npiPrefix + s)
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
