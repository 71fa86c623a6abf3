package preference

import (
	"sort"

	"github.com/okian/scout/internal/domain/model"
)

// Insights summarizes what the model has learned. RemotePreference is the
// learned weight of the remote flag.
type Insights struct {
	Decisions        int                   `json:"decisions"`
	Approved         int                   `json:"approved"`
	Refused          int                   `json:"refused"`
	TopKeywords      []model.FeatureWeight `json:"top_keywords"`
	AvoidedKeywords  []model.FeatureWeight `json:"avoided_keywords"`
	TopCompanies     []model.FeatureWeight `json:"top_companies"`
	Categories       []model.FeatureWeight `json:"categories"`
	RemotePreference float64               `json:"remote_preference"`
	Features         map[model.Group]int   `json:"features"`
}

// Insights returns up to n entries per list. Keyword and company lists only
// include features with a positive (or, for avoided keywords, negative)
// weight.
func (m *Model) Insights(n int) Insights {
	m.mu.RLock()
	defer m.mu.RUnlock()

	in := Insights{
		Decisions: m.decisions,
		Approved:  m.approved,
		Refused:   m.refused,
		Features:  make(map[model.Group]int, len(model.Groups)),
	}

	var keywords, companies []model.FeatureWeight
	for k, w := range m.weights {
		in.Features[k.Group]++
		fw := model.FeatureWeight{FeatureKey: k, Weight: w.value, Seen: w.seen}
		switch k.Group {
		case model.GroupKeyword:
			keywords = append(keywords, fw)
		case model.GroupCompany:
			if w.value > 0 {
				companies = append(companies, fw)
			}
		case model.GroupCategory:
			in.Categories = append(in.Categories, fw)
		case model.GroupRemote:
			if k.Feature == model.RemoteYes {
				in.RemotePreference = w.value
			}
		}
	}

	byWeightDesc(keywords)
	for _, fw := range keywords {
		if fw.Weight > 0 && len(in.TopKeywords) < n {
			in.TopKeywords = append(in.TopKeywords, fw)
		}
	}
	for i := len(keywords) - 1; i >= 0 && len(in.AvoidedKeywords) < n; i-- {
		if keywords[i].Weight < 0 {
			in.AvoidedKeywords = append(in.AvoidedKeywords, keywords[i])
		}
	}

	byWeightDesc(companies)
	in.TopCompanies = head(companies, n)
	byWeightDesc(in.Categories)
	return in
}

func byWeightDesc(ws []model.FeatureWeight) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].Weight != ws[j].Weight {
			return ws[i].Weight > ws[j].Weight
		}
		return ws[i].Feature < ws[j].Feature
	})
}

func head(ws []model.FeatureWeight, n int) []model.FeatureWeight {
	if n >= 0 && len(ws) > n {
		return ws[:n]
	}
	return ws
}
