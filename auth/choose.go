package auth

// mechanismPriority ranks SASL mechanisms from strongest to weakest for
// automatic selection. XOAUTH2 and OAUTHBEARER are absent here:
// ChooseMechanism considers them, ahead of this list, only when the caller
// has an access token.
var mechanismPriority = []string{
	"SCRAM-SHA-256",
	"SCRAM-SHA-1",
	"CRAM-MD5",
	"NTLM",
	"PLAIN",
	"LOGIN",
}

// ChooseMechanism picks the strongest mechanism name in offered (what the
// server advertised, e.g. via CAPABILITY AUTH=), ranked by the fixed
// mechanismPriority list and compared case-insensitively; no registry is
// consulted. hasOAuthToken permits OAUTHBEARER, then XOAUTH2, to be
// selected ahead of everything else when the server offers it. Returns ""
// if none of the ranked mechanisms is offered.
func ChooseMechanism(offered []string, hasOAuthToken bool) string {
	offeredSet := make(map[string]bool, len(offered))
	for _, m := range offered {
		offeredSet[normalizeMechName(m)] = true
	}

	if hasOAuthToken {
		for _, name := range []string{"OAUTHBEARER", "XOAUTH2"} {
			if offeredSet[name] {
				return name
			}
		}
	}

	for _, name := range mechanismPriority {
		if offeredSet[name] {
			return name
		}
	}
	return ""
}

func normalizeMechName(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
