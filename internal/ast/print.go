package ast

import (
	"fmt"
	"io"
	"strings"
)

// Dump returns a human-readable representation of the AST.
func Dump(node Node) string {
	var sb strings.Builder
	fprintNode(&sb, node, 0)
	return sb.String()
}

func fprintNode(w io.Writer, n Node, indent int) {
	if n == nil {
		return
	}

	ind := strings.Repeat("  ", indent)

	switch n := n.(type) {
	case *Program:
		fmt.Fprintf(w, "%sProgram\n", ind)
		for _, s := range n.Stmts {
			fprintNode(w, s, indent+1)
		}

	case *BlockStmt:
		fmt.Fprintf(w, "%sBlock\n", ind)
		for _, s := range n.Stmts {
			fprintNode(w, s, indent+1)
		}

	case *VarDecl:
		fmt.Fprintf(w, "%sVarDecl name=%s\n", ind, n.Name.Name)
		fprintNode(w, n.Value, indent+1)

	case *ExprStmt:
		fmt.Fprintf(w, "%sExprStmt\n", ind)
		fprintNode(w, n.X, indent+1)

	case *IfStmt:
		fmt.Fprintf(w, "%sIf\n", ind)
		for _, br := range n.Branches {
			fmt.Fprintf(w, "%s  Cond:\n", ind)
			fprintNode(w, br.Cond, indent+2)
			fprintNode(w, br.Body, indent+1)
		}
		if n.Else != nil {
			fmt.Fprintf(w, "%s  Else:\n", ind)
			fprintNode(w, n.Else, indent+2)
		}

	case *WhileStmt:
		fmt.Fprintf(w, "%sWhile\n", ind)
		fprintNode(w, n.Cond, indent+1)
		fprintNode(w, n.Body, indent+1)

	case *ForStmt:
		fmt.Fprintf(w, "%sFor\n", ind)
		if n.Init != nil {
			fprintNode(w, n.Init, indent+1)
		}
		if n.Cond != nil {
			fprintNode(w, n.Cond, indent+1)
		}
		if n.Post != nil {
			fprintNode(w, n.Post, indent+1)
		}
		fprintNode(w, n.Body, indent+1)

	case *ForInStmt:
		fmt.Fprintf(w, "%sForIn var=%s\n", ind, n.Var.Name)
		fprintNode(w, n.Iter, indent+1)
		fprintNode(w, n.Body, indent+1)

	case *BreakStmt:
		fmt.Fprintf(w, "%sBreak\n", ind)

	case *ContinueStmt:
		fmt.Fprintf(w, "%sContinue\n", ind)

	case *ReturnStmt:
		fmt.Fprintf(w, "%sReturn\n", ind)
		if n.Value != nil {
			fprintNode(w, n.Value, indent+1)
		}

	case *FuncDecl:
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.Name.Name
			if p.Default != nil {
				params[i] += "=?"
			}
		}
		fmt.Fprintf(w, "%sFuncDecl name=%s params=(%s)\n", ind, n.Name.Name, strings.Join(params, ", "))
		fprintNode(w, n.Body, indent+1)

	case *TryStmt:
		fmt.Fprintf(w, "%sTry\n", ind)
		fprintNode(w, n.Body, indent+1)
		for _, c := range n.Catches {
			typ := "*"
			if c.Type != nil {
				typ = c.Type.Name
			}
			fmt.Fprintf(w, "%s  Catch type=%s var=%s\n", ind, typ, c.Var.Name)
			fprintNode(w, c.Body, indent+2)
		}
		if n.Finally != nil {
			fmt.Fprintf(w, "%s  Finally:\n", ind)
			fprintNode(w, n.Finally, indent+2)
		}

	case *ThrowStmt:
		fmt.Fprintf(w, "%sThrow\n", ind)
		fprintNode(w, n.Value, indent+1)

	case *CriticalStmt:
		fmt.Fprintf(w, "%sCritical\n", ind)
		fprintNode(w, n.Body, indent+1)

	case *SpawnStmt:
		name := "<anonymous>"
		if n.Name != nil {
			name = n.Name.Name
		}
		fmt.Fprintf(w, "%sSpawn name=%s\n", ind, name)
		if n.Size != nil {
			fprintNode(w, n.Size, indent+1)
		}
		fprintNode(w, n.Body, indent+1)

	case *WaitStmt:
		fmt.Fprintf(w, "%sWait name=%s\n", ind, n.Name.Name)

	case *Ident:
		fmt.Fprintf(w, "%sIdent %s\n", ind, n.Name)

	case *IntLit:
		fmt.Fprintf(w, "%sInt %d\n", ind, n.Value)

	case *DoubleLit:
		fmt.Fprintf(w, "%sDouble %g\n", ind, n.Value)

	case *StringLit:
		fmt.Fprintf(w, "%sString %q\n", ind, n.Value)

	case *BoolLit:
		fmt.Fprintf(w, "%sBool %t\n", ind, n.Value)

	case *NullLit:
		fmt.Fprintf(w, "%sNull\n", ind)

	case *ArrayLit:
		fmt.Fprintf(w, "%sArray len=%d\n", ind, len(n.Elems))
		for _, e := range n.Elems {
			fprintNode(w, e, indent+1)
		}

	case *BinaryExpr:
		fmt.Fprintf(w, "%sBinary %s\n", ind, n.Op)
		fprintNode(w, n.Left, indent+1)
		fprintNode(w, n.Right, indent+1)

	case *LogicalExpr:
		fmt.Fprintf(w, "%sLogical %s\n", ind, n.Op)
		fprintNode(w, n.Left, indent+1)
		fprintNode(w, n.Right, indent+1)

	case *UnaryExpr:
		fmt.Fprintf(w, "%sUnary %s\n", ind, n.Op)
		fprintNode(w, n.X, indent+1)

	case *IncDecExpr:
		form := "postfix"
		if n.Prefix {
			form = "prefix"
		}
		fmt.Fprintf(w, "%sIncDec %s %s\n", ind, n.Op, form)
		fprintNode(w, n.X, indent+1)

	case *AssignExpr:
		fmt.Fprintf(w, "%sAssign %s\n", ind, n.Op)
		fprintNode(w, n.Target, indent+1)
		fprintNode(w, n.Value, indent+1)

	case *CallExpr:
		fmt.Fprintf(w, "%sCall\n", ind)
		fprintNode(w, n.Callee, indent+1)
		for _, a := range n.Args {
			fprintNode(w, a, indent+1)
		}

	case *MethodCallExpr:
		fmt.Fprintf(w, "%sMethodCall %s\n", ind, n.Method.Name)
		fprintNode(w, n.Recv, indent+1)
		for _, a := range n.Args {
			fprintNode(w, a, indent+1)
		}

	case *NewExpr:
		fmt.Fprintf(w, "%sNew %s\n", ind, n.Type.Name)
		for _, a := range n.Args {
			fprintNode(w, a, indent+1)
		}

	case *IndexExpr:
		fmt.Fprintf(w, "%sIndex\n", ind)
		fprintNode(w, n.X, indent+1)
		fprintNode(w, n.Index, indent+1)

	default:
		fmt.Fprintf(w, "%s<unknown %T>\n", ind, n)
	}
}
