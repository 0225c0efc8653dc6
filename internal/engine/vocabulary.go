package engine

// vocabularyBoost is the weight applied to the domain phrase lists. Strong
// enough to win against common homophones ("plea" vs "plee", "bailiff" vs
// "bay leaf") without drowning out ordinary speech.
const vocabularyBoost = 15.0

// legalVocabulary is injected into every recognition request. Court audio
// is dense with terms the general models mis-hear.
var legalVocabulary = []string{
	"court",
	"judge",
	"attorney",
	"plaintiff",
	"defendant",
	"prosecution",
	"defense counsel",
	"plea",
	"guilty",
	"not guilty",
	"no contest",
	"subpoena",
	"arraignment",
	"docket",
	"bailiff",
	"testimony",
	"witness",
	"objection",
	"sustained",
	"overruled",
	"continuance",
	"probation",
	"parole",
	"restitution",
	"misdemeanor",
	"felony",
	"citation",
	"warrant",
	"bond",
	"bail",
	"deferred disposition",
	"your honor",
}
