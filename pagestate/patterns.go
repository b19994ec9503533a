package pagestate

// patternSet pairs URL substrings with visible-text phrases for one state.
// Text phrases cover the two locales the target is known to serve (en, es);
// new locales are added by extending these tables. All matching is done on
// lowercased input.
type patternSet struct {
	urls  []string
	texts []string
}

var suspendedPatterns = patternSet{
	urls: []string{"/accounts/suspended", "suspension"},
	texts: []string{
		"your account has been suspended",
		"we suspended your account",
		"tu cuenta ha sido suspendida",
		"hemos suspendido tu cuenta",
	},
}

var bannedPatterns = patternSet{
	urls: []string{"/accounts/disabled", "account_disabled"},
	texts: []string{
		"your account has been disabled",
		"your account has been permanently disabled",
		"tu cuenta ha sido inhabilitada",
		"tu cuenta se ha inhabilitado",
	},
}

var verificationPatterns = patternSet{
	urls: []string{"confirm_email", "/accounts/confirm"},
	texts: []string{
		"confirm your email address",
		"verify your email",
		"confirma tu dirección de correo",
		"verifica tu correo",
	},
}

var passwordResetPatterns = patternSet{
	urls: []string{"password/reset", "/accounts/password/change"},
	texts: []string{
		"you need to change your password",
		"create a new password to continue",
		"debes cambiar tu contraseña",
	},
}

var challengePatterns = patternSet{
	urls: []string{"/challenge", "checkpoint"},
	texts: []string{
		"confirm it's you",
		"help us confirm it's you",
		"we detected suspicious activity",
		"confirma que eres tú",
		"actividad sospechosa",
	},
}

var rateLimitPatterns = []string{
	"please wait a few minutes",
	"try again later",
	"we limit how often",
	"espera unos minutos",
	"vuelve a intentarlo más tarde",
	"limitamos la frecuencia",
}

var wrongPasswordPatterns = []string{
	"your password was incorrect",
	"the password you entered is incorrect",
	"incorrect username or password",
	"la contraseña es incorrecta",
	"la contraseña que ingresaste es incorrecta",
}

var loginURLPatterns = []string{"/accounts/login", "/login"}

var twoFactorURLPatterns = []string{"two_factor", "twofactor", "2fa"}

// codeFieldProbes detect a one-time-code entry field in the DOM.
var codeFieldProbes = []string{
	`input[name="verificationCode"]`,
	`input[autocomplete="one-time-code"]`,
	`input[maxlength="6"][type="tel"]`,
	`input[maxlength="6"][inputmode="numeric"]`,
}

// badStateURLPatterns disqualify a page from ContentReady regardless of
// what else is on it.
var badStateURLPatterns = []string{
	"/accounts/login", "/login",
	"/accounts/suspended", "suspension",
	"/accounts/disabled", "account_disabled",
	"/challenge", "checkpoint",
	"two_factor",
	"confirm_email",
	"password/reset",
}

// navLandmarkProbes are positive indicators for a logged-in content page.
var navLandmarkProbes = []string{
	`[aria-label="Home"]`,
	`nav a[href="/"]`,
	`[data-testid="mobile-nav-home"]`,
	`[role="navigation"] a[href="/explore/"]`,
}
