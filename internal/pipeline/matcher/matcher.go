// Package matcher links records from feeds that share no reliable foreign
// key. Every function is pure; a record that cannot be linked with
// confidence is reported, never guessed.
package matcher

import (
	"recruit-pipeline/internal/models"
	"recruit-pipeline/internal/pipeline/normalize"
)

// Rule names the strategy that produced a link.
type Rule string

const (
	RuleNone        Rule = ""
	RuleID          Rule = "id"
	RuleRoundName   Rule = "round_name"
	RuleRoundOrder  Rule = "round_order"
	RuleInterviewID Rule = "interview_id"
	RuleRoundID     Rule = "round_id"
	RuleNameEmail   Rule = "name_email"
)

// Outcome classifies a linkage attempt.
type Outcome int

const (
	Linked Outcome = iota
	Unlinked
	Ambiguous
)

// Link is the result of resolving a record to a round.
type Link struct {
	RoundID    string
	Rule       Rule
	Outcome    Outcome
	Candidates []string
}

// LinkInterviewToRound resolves the round an interview belongs to: exact
// round id, then normalized round name, then round order. A name or order
// shared by several rounds links nothing.
func LinkInterviewToRound(iv models.Interview, rounds []models.RoundDefinition) (string, bool) {
	link := ResolveInterview(iv, rounds)
	return link.RoundID, link.Outcome == Linked
}

// ResolveInterview is LinkInterviewToRound with the rule and ambiguity
// detail kept.
func ResolveInterview(iv models.Interview, rounds []models.RoundDefinition) Link {
	if iv.RoundID != "" {
		for _, r := range rounds {
			if r.ID == iv.RoundID {
				return Link{RoundID: r.ID, Rule: RuleID, Outcome: Linked}
			}
		}
	}

	if key := normalize.NormalizeKey(iv.RoundName); key != "" {
		if link, decided := single(rounds, RuleRoundName, func(r models.RoundDefinition) bool {
			return normalize.NormalizeKey(r.Name) == key
		}); decided {
			return link
		}
	}

	if iv.RoundOrder > 0 {
		if link, decided := single(rounds, RuleRoundOrder, func(r models.RoundDefinition) bool {
			return r.Order == iv.RoundOrder
		}); decided {
			return link
		}
	}

	return Link{Outcome: Unlinked}
}

// LinkFeedbackToCandidate accepts a feedback record for a candidate on an id
// match against either of the candidate's ids. Without one, name and email
// must both agree; a single matching field is not enough.
func LinkFeedbackToCandidate(fb models.FeedbackRecord, c models.Candidate) bool {
	rule := candidateRule(fb, c)
	return rule != RuleNone
}

func candidateRule(fb models.FeedbackRecord, c models.Candidate) Rule {
	if c.HasID(fb.CandidateID) {
		return RuleID
	}

	fbName, fbEmail := normalize.NormalizeName(fb.CandidateName), normalize.NormalizeEmail(fb.CandidateEmail)
	cName, cEmail := normalize.NormalizeName(c.Name), normalize.NormalizeEmail(c.Email)
	if fbName == "" || fbEmail == "" || cName == "" || cEmail == "" {
		return RuleNone
	}
	if fbName == cName && fbEmail == cEmail {
		return RuleNameEmail
	}
	return RuleNone
}

// LinkFeedbackToRound reports whether any of the round rules ties fb to
// round: round name, then an interview of that round sharing fb's interview
// id, then round id. interviews are the interviews already linked to round.
func LinkFeedbackToRound(fb models.FeedbackRecord, round models.RoundDefinition, interviews ...models.Interview) bool {
	for _, rule := range feedbackRoundRules {
		if rule.match(fb, round, interviews) {
			return true
		}
	}
	return false
}

type feedbackRule struct {
	name  Rule
	match func(fb models.FeedbackRecord, round models.RoundDefinition, interviews []models.Interview) bool
}

var feedbackRoundRules = []feedbackRule{
	{
		name: RuleRoundName,
		match: func(fb models.FeedbackRecord, round models.RoundDefinition, _ []models.Interview) bool {
			key := normalize.NormalizeKey(fb.RoundName)
			return key != "" && key == normalize.NormalizeKey(round.Name)
		},
	},
	{
		name: RuleInterviewID,
		match: func(fb models.FeedbackRecord, _ models.RoundDefinition, interviews []models.Interview) bool {
			if fb.InterviewID == "" {
				return false
			}
			for _, iv := range interviews {
				if iv.ID == fb.InterviewID {
					return true
				}
			}
			return false
		},
	},
	{
		name: RuleRoundID,
		match: func(fb models.FeedbackRecord, round models.RoundDefinition, _ []models.Interview) bool {
			return fb.RoundID != "" && fb.RoundID == round.ID
		},
	},
}

// AssignFeedback picks the single round fb belongs to. Rules are tried in
// order across all rounds; the first rule that matches anything decides.
// If that rule matches more than one round the record is ambiguous.
// interviewsByRound holds the interviews linked to each round id.
func AssignFeedback(fb models.FeedbackRecord, rounds []models.RoundDefinition, interviewsByRound map[string][]models.Interview) Link {
	for _, rule := range feedbackRoundRules {
		link, decided := single(rounds, rule.name, func(r models.RoundDefinition) bool {
			return rule.match(fb, r, interviewsByRound[r.ID])
		})
		if decided {
			return link
		}
	}
	return Link{Outcome: Unlinked}
}

// single applies pred to every round. decided is false when nothing matched.
func single(rounds []models.RoundDefinition, rule Rule, pred func(models.RoundDefinition) bool) (Link, bool) {
	var matched []string
	for _, r := range rounds {
		if pred(r) {
			matched = append(matched, r.ID)
		}
	}
	switch len(matched) {
	case 0:
		return Link{}, false
	case 1:
		return Link{RoundID: matched[0], Rule: rule, Outcome: Linked}, true
	default:
		return Link{Rule: rule, Outcome: Ambiguous, Candidates: matched}, true
	}
}
