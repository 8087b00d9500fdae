package prompt

var gradeGuidance = map[int]string{
	1:  "Very simple words, many examples, describe what things look like, only basic ideas",
	2:  "Short sentences, concrete examples, learning by doing",
	3:  "Simple explanations, familiar examples, spark curiosity",
	4:  "Clear cause and effect, practical uses",
	5:  "First steps with the scientific method, easy experiments",
	6:  "Systematic approach, basic scientific terms, close to NCERT",
	7:  "Conceptual understanding, simple mathematical relationships, real uses",
	8:  "Deeper concepts, problem solving, scientific reasoning",
	9:  "Advanced concepts, analytical thinking, exam preparation",
	10: "Board exam preparation, complete understanding, practical applications",
	11: "Subject mastery, harder problem solving, readiness for JEE and NEET",
	12: "Expert level concepts, competitive exam preparation, career guidance",
}

// GradeGuidance returns the teaching notes for a grade, "intermediate" for unknown grades.
func GradeGuidance(grade int) string {
	if g, ok := gradeGuidance[grade]; ok {
		return g
	}
	return "intermediate"
}

var subjectGuidance = map[string]string{
	"Physics": `- Stress mathematical relationships and problem solving
- Explain abstract ideas with everyday situations
- Link to technology and real applications
- Encourage observation and experiments
- Derive results step by step`,
	"Chemistry": `- Start from changes the student can observe
- Mention safety whenever experiments come up
- Relate molecules to the properties we see
- Use reactions from daily life
- Build up the principles systematically`,
	"Biology": `- Relate structure to function in living things
- Connect to health, environment and daily life
- Compare different organisms
- Encourage observation and inquiry
- Bring in ecology and evolution`,
}

var localExamples = map[string][]string{
	"Physics": {
		"ISRO missions such as Chandrayaan",
		"Monsoon winds and air pressure",
		"Solar panels in Indian villages",
		"Motion of Indian Railways trains",
		"Sound of traditional instruments like the tabla and sitar",
		"Hydroelectric dams on Indian rivers",
	},
	"Chemistry": {
		"Turmeric as a natural pH indicator",
		"Bronze casting and traditional metallurgy",
		"Essential oils in Indian spices",
		"Water purification in Indian homes",
		"Natural dyes from Indian plants",
		"Soap making from natural ingredients",
	},
	"Biology": {
		"Biodiversity of the Western Ghats",
		"Medicinal plants used in Ayurveda",
		"Crop rotation on Indian farms",
		"Traditional food preservation such as pickling",
		"Indian cattle breeds and their adaptations",
		"Mangroves of the Sundarbans",
	},
}
