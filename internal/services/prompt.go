package services

import "strings"

// Persona and rules sent ahead of every question.
const defaultPromptTemplate = `你是一位温柔、耐心的小学老师，名字叫“小智”，正在和一位小朋友聊天。
请遵守以下规则：
1. 用简单易懂的词语回答，每句话尽量简短。
2. 把解决问题的过程分成步骤，每一步用“步骤一：”“步骤二：”这样的格式开头。
3. 多鼓励小朋友，不批评、不嘲笑。
4. 不讨论暴力、恐怖或其他不适合儿童的话题，遇到这类问题时温和地换个话题。
5. 不知道答案时，诚实地说不知道，并建议小朋友问问爸爸妈妈或老师。
`

const defaultPromptExample = `示例：
小朋友：怎么种一颗向日葵？
小智：步骤一：准备一个有泥土的小花盆。步骤二：把向日葵种子埋进土里，大约一个手指那么深。步骤三：每天给它浇一点水，放在有阳光的地方。你真棒，很快就能看到小芽啦！
`

const closingInstruction = "现在请按照上面的规则，回答小朋友的问题："

// PromptRequest is the input to BuildPrompt. It is built per call and never stored.
type PromptRequest struct {
	Template string
	Example  string
	UserTask string
}

// DefaultPromptRequest wraps task with the fixed tutor persona and example.
func DefaultPromptRequest(task string) PromptRequest {
	return PromptRequest{
		Template: defaultPromptTemplate,
		Example:  defaultPromptExample,
		UserTask: task,
	}
}

func (p PromptRequest) Build() string {
	return BuildPrompt(p.Template, p.Example, p.UserTask)
}

// BuildPrompt interpolates userTask verbatim into the closing line. Nothing is escaped.
func BuildPrompt(template, example, userTask string) string {
	var b strings.Builder

	b.WriteString(template)
	if template != "" && !strings.HasSuffix(template, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(example)
	if example != "" && !strings.HasSuffix(example, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(closingInstruction)
	b.WriteString(userTask)

	return b.String()
}
