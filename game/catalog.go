package game

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"codequest/models"
)

const DefaultQuestionLimit = 20

var universes = []models.Universe{
	{ID: "javascript", Name: "JavaScript", Icon: "🟨", Description: "Master the language of the web", Category: "web", TotalLevels: 10},
	{ID: "typescript", Name: "TypeScript", Icon: "🔷", Description: "JavaScript with types", Category: "web", TotalLevels: 8},
	{ID: "react", Name: "React", Icon: "⚛️", Description: "Build user interfaces", Category: "web", TotalLevels: 12},
	{ID: "vue", Name: "Vue.js", Icon: "💚", Description: "Progressive JavaScript framework", Category: "web", TotalLevels: 10},
	{ID: "angular", Name: "Angular", Icon: "🅰️", Description: "Platform for web applications", Category: "web", TotalLevels: 10},
	{ID: "nodejs", Name: "Node.js", Icon: "🟩", Description: "JavaScript runtime environment", Category: "web", TotalLevels: 9},
	{ID: "nextjs", Name: "Next.js", Icon: "▲", Description: "The React framework for production", Category: "web", TotalLevels: 8},
	{ID: "css", Name: "CSS", Icon: "🎨", Description: "Style the web", Category: "web", TotalLevels: 8},
	{ID: "react-native", Name: "React Native", Icon: "📱", Description: "Native apps with React", Category: "mobile", TotalLevels: 10},
	{ID: "flutter", Name: "Flutter", Icon: "🦋", Description: "Cross-platform UI toolkit", Category: "mobile", TotalLevels: 10},
	{ID: "swift", Name: "Swift", Icon: "🍎", Description: "Apple platform development", Category: "mobile", TotalLevels: 12},
	{ID: "kotlin", Name: "Kotlin", Icon: "🤖", Description: "Modern Android development", Category: "mobile", TotalLevels: 12},
	{ID: "python", Name: "Python", Icon: "🐍", Description: "Versatile and readable", Category: "data", TotalLevels: 15},
	{ID: "pandas", Name: "Pandas", Icon: "🐼", Description: "Data analysis in Python", Category: "data", TotalLevels: 8},
	{ID: "numpy", Name: "NumPy", Icon: "🔢", Description: "Numerical computing", Category: "data", TotalLevels: 6},
	{ID: "sql", Name: "SQL", Icon: "🗃️", Description: "Query relational databases", Category: "data", TotalLevels: 10},
	{ID: "r", Name: "R", Icon: "📊", Description: "Statistical computing", Category: "data", TotalLevels: 8},
	{ID: "tensorflow", Name: "TensorFlow", Icon: "🧠", Description: "Machine learning at scale", Category: "ai", TotalLevels: 10},
	{ID: "pytorch", Name: "PyTorch", Icon: "🔥", Description: "Deep learning research", Category: "ai", TotalLevels: 10},
	{ID: "scikit-learn", Name: "scikit-learn", Icon: "📈", Description: "Classic machine learning", Category: "ai", TotalLevels: 8},
	{ID: "java", Name: "Java", Icon: "☕", Description: "Write once, run anywhere", Category: "systems", TotalLevels: 12},
	{ID: "csharp", Name: "C#", Icon: "🟪", Description: "The .NET language", Category: "systems", TotalLevels: 12},
	{ID: "go", Name: "Go", Icon: "🐹", Description: "Simple, reliable, efficient", Category: "systems", TotalLevels: 10},
	{ID: "rust", Name: "Rust", Icon: "🦀", Description: "Performance and safety", Category: "systems", TotalLevels: 12},
	{ID: "cpp", Name: "C++", Icon: "⚙️", Description: "Systems programming", Category: "systems", TotalLevels: 15},
	{ID: "docker", Name: "Docker", Icon: "🐳", Description: "Containerize everything", Category: "systems", TotalLevels: 6},
	{ID: "kubernetes", Name: "Kubernetes", Icon: "☸️", Description: "Orchestrate containers", Category: "systems", TotalLevels: 8},
	{ID: "unity", Name: "Unity", Icon: "🎮", Description: "Real-time 3D games", Category: "game", TotalLevels: 10},
	{ID: "unreal", Name: "Unreal Engine", Icon: "🕹️", Description: "High-fidelity game engine", Category: "game", TotalLevels: 12},
}

var questionPool = []models.Question{
	{ID: "js_1_1", UniverseID: "javascript", Level: 1, Prompt: "Which data type holds whole numbers in JavaScript?",
		Options: []string{"int", "integer", "number", "float"}, CorrectAnswer: 2,
		Explanation: "JavaScript uses the number type for both integers and decimals.", Difficulty: models.DifficultyBeginner},
	{ID: "js_1_2", UniverseID: "javascript", Level: 1, Prompt: "How do you declare a variable in ES6+?",
		Options: []string{"var x = 5", "let x = 5", "const x = 5", "All of the above"}, CorrectAnswer: 3,
		Explanation: "var, let and const are all valid depending on the mutability you need.", Difficulty: models.DifficultyBeginner},
	{ID: "js_1_3", UniverseID: "javascript", Level: 1, Prompt: "Which method prints text to the console?",
		Options: []string{"console.print()", "console.log()", "console.write()", "print()"}, CorrectAnswer: 1,
		Explanation: "console.log() is the standard way to print to the console.", Difficulty: models.DifficultyBeginner},
	{ID: "js_2_1", UniverseID: "javascript", Level: 2, Prompt: `What does typeof null return?`,
		Options: []string{`"null"`, `"undefined"`, `"object"`, `"boolean"`}, CorrectAnswer: 2,
		Explanation: `A historical quirk: typeof null is "object".`, Difficulty: models.DifficultyIntermediate},
	{ID: "js_2_2", UniverseID: "javascript", Level: 2, Prompt: "Which of these returns the square of a number?",
		Options: []string{"x => x * x", "function(x) { return x * x }", "(x) => { return x * x }", "All of the above"}, CorrectAnswer: 3,
		Explanation: "All three forms define a function returning x squared.", Difficulty: models.DifficultyIntermediate},
	{ID: "js_5_1", UniverseID: "javascript", Level: 5, Prompt: "What does [...new Set([1,2,2,3,3,3])] produce?",
		Options: []string{"An array with duplicates", "The array without duplicates", "A sorted array", "An error"}, CorrectAnswer: 1,
		Explanation: "A Set drops duplicates and the spread turns it back into an array.", Difficulty: models.DifficultyAdvanced},
	{ID: "react_1_1", UniverseID: "react", Level: 1, Prompt: "Which hook manages local state in a function component?",
		Options: []string{"useEffect", "useState", "useContext", "useReducer"}, CorrectAnswer: 1,
		Explanation: "useState is the primary hook for local component state.", Difficulty: models.DifficultyBeginner},
	{ID: "react_1_2", UniverseID: "react", Level: 1, Prompt: "How does a parent pass data to a child component?",
		Options: []string{"Props", "useState", "useEffect", "Global variables"}, CorrectAnswer: 0,
		Explanation: "Props carry data from parent to child.", Difficulty: models.DifficultyBeginner},
	{ID: "react_3_1", UniverseID: "react", Level: 3, Prompt: "What is the difference between useCallback and useMemo?",
		Options: []string{"None", "useCallback memoizes functions, useMemo memoizes values", "useMemo memoizes functions, useCallback memoizes values", "They are identical"}, CorrectAnswer: 1,
		Explanation: "useCallback keeps a function identity, useMemo caches a computed value.", Difficulty: models.DifficultyIntermediate},
	{ID: "python_1_1", UniverseID: "python", Level: 1, Prompt: "How do you create an empty list in Python?",
		Options: []string{"list = []", "list = ()", "list = {}", `list = ""`}, CorrectAnswer: 0,
		Explanation: "Square brackets create a list; parentheses create a tuple.", Difficulty: models.DifficultyBeginner},
	{ID: "python_1_2", UniverseID: "python", Level: 1, Prompt: "Which function prints text in Python?",
		Options: []string{"console.log()", "echo()", "print()", "write()"}, CorrectAnswer: 2,
		Explanation: "print() writes to standard output.", Difficulty: models.DifficultyBeginner},
	{ID: "ts_1_1", UniverseID: "typescript", Level: 1, Prompt: "How do you declare a variable with an explicit type?",
		Options: []string{"let x: number = 5", "let x = 5: number", "number x = 5", "let x<number> = 5"}, CorrectAnswer: 0,
		Explanation: "Type annotations follow the name after a colon.", Difficulty: models.DifficultyBeginner},
	{ID: "css_1_1", UniverseID: "css", Level: 1, Prompt: "Which CSS property changes the text colour?",
		Options: []string{"text-color", "font-color", "color", "text-style"}, CorrectAnswer: 2,
		Explanation: "The color property sets the foreground colour of text.", Difficulty: models.DifficultyBeginner},
	{ID: "sql_1_1", UniverseID: "sql", Level: 1, Prompt: "Which statement selects every column of a table?",
		Options: []string{"SELECT ALL FROM table", "SELECT * FROM table", "GET * FROM table", "FETCH * FROM table"}, CorrectAnswer: 1,
		Explanation: "The asterisk selects all columns.", Difficulty: models.DifficultyBeginner},
	{ID: "docker_1_1", UniverseID: "docker", Level: 1, Prompt: "Which command lists running containers?",
		Options: []string{"docker list", "docker ps", "docker show", "docker containers"}, CorrectAnswer: 1,
		Explanation: "docker ps lists running containers; add -a for stopped ones.", Difficulty: models.DifficultyBeginner},
}

type questionTemplate struct {
	prompt  string
	options []string
	correct int
}

var questionTemplates = map[string][]questionTemplate{
	"javascript": {
		{`What does console.log(1 + "1") print?`, []string{"2", `"11"`, "11", "NaN"}, 1},
		{"How do you check that a value is an array?", []string{`typeof arr === "array"`, "Array.isArray(arr)", "arr instanceof Array", "B and C are both correct"}, 3},
	},
	"python": {
		{"How do you create an empty dictionary?", []string{"{}", "dict()", "Both", "Neither"}, 2},
		{"What does list.append() do?", []string{"Removes an element", "Adds an element at the end", "Sorts the list", "Reverses the list"}, 1},
	},
	"react": {
		{"When does useEffect run by default?", []string{"Only on mount", "After every render", "Only on unmount", "Never"}, 1},
		{"How do you avoid needless re-renders?", []string{"React.memo", "useCallback", "useMemo", "All of the above"}, 3},
	},
	"go": {
		{"Which keyword starts a goroutine?", []string{"async", "go", "spawn", "thread"}, 1},
		{"What is the zero value of a map?", []string{"An empty map", "nil", "0", "It does not compile"}, 1},
	},
}

// genericTemplates cover universes without their own filler. %s is the
// universe name.
var genericTemplates = []questionTemplate{
	{"When should you reach for the official %s documentation?", []string{"From the very start", "Only after shipping", "Never", "Only when filing bugs"}, 0},
	{"What is the most reliable way to learn %s?", []string{"Memorising syntax", "Building small projects", "Avoiding errors", "Skipping the basics"}, 1},
}

// DifficultyForLevel maps a level onto its difficulty label.
func DifficultyForLevel(level int) string {
	switch {
	case level <= 2:
		return models.DifficultyBeginner
	case level <= 5:
		return models.DifficultyIntermediate
	case level <= 8:
		return models.DifficultyAdvanced
	default:
		return models.DifficultyExpert
	}
}

// GenerateQuestions synthesizes filler questions for a universe and level.
func GenerateQuestions(universe models.Universe, level int) []models.Question {
	templates, ok := questionTemplates[universe.ID]
	generic := !ok
	if generic {
		templates = genericTemplates
	}

	generated := make([]models.Question, 0, len(templates))
	for i, tpl := range templates {
		prompt := tpl.prompt
		if generic {
			prompt = fmt.Sprintf(tpl.prompt, universe.Name)
		}
		generated = append(generated, models.Question{
			ID:            fmt.Sprintf("%s_%d_gen_%d", universe.ID, level, i),
			UniverseID:    universe.ID,
			Level:         level,
			Prompt:        prompt,
			Options:       append([]string{}, tpl.options...),
			CorrectAnswer: tpl.correct,
			Explanation:   "Generated automatically.",
			Difficulty:    DifficultyForLevel(level),
		})
	}
	return generated
}

// Catalog serves universes and draws question lists for sessions.
type Catalog struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewCatalog(seed uint64) *Catalog {
	return &Catalog{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (c *Catalog) Universes() []models.Universe {
	return append([]models.Universe{}, universes...)
}

func (c *Catalog) UniversesByCategory(category string) []models.Universe {
	var result []models.Universe
	for _, u := range universes {
		if u.Category == category {
			result = append(result, u)
		}
	}
	return result
}

func (c *Catalog) Universe(universeID string) (models.Universe, bool) {
	for _, u := range universes {
		if u.ID == universeID {
			return u, true
		}
	}
	return models.Universe{}, false
}

// Questions returns up to limit shuffled questions for a universe level,
// topping up the static pool with generated filler when it runs short.
func (c *Catalog) Questions(universeID string, level, limit int) []models.Question {
	universe, ok := c.Universe(universeID)
	if !ok {
		return nil
	}
	if limit <= 0 {
		limit = DefaultQuestionLimit
	}

	var selected []models.Question
	for _, q := range questionPool {
		if q.UniverseID == universeID && q.Level == level {
			selected = append(selected, q)
		}
	}
	if len(selected) < limit {
		selected = append(selected, GenerateQuestions(universe, level)...)
	}

	c.mu.Lock()
	c.rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	c.mu.Unlock()

	if len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}
